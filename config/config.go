// Package config provides the rigel-backed etcd client construction used
// by internal/config.TunableWatcher. Kept at the root alongside the other
// adapted teacher packages (router, wscutils) rather than
// folded into internal/config, since it is the one piece of configuration
// machinery the teacher's own config package already supplied in full.
//
// The teacher's generic Config interface, Event, Load(cs, c), and the
// Rigel adapter (Get/Watch stubbed as not implemented) are dropped: this
// worker has exactly one required-value source (environment, see
// internal/config.Load) and internal/config.TunableWatcher calls
// *rigel.Rigel.LoadConfig directly, so nothing consumes that contract.
package config

import (
	"log"
	"time"

	"github.com/remiges-tech/rigel"
	"github.com/remiges-tech/rigel/etcd"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// NewRigelClient dials etcd and returns a ready-to-use rigel client. A
// dial failure is logged and returned rather than being fatal, since rigel
// only ever backs optional tunables — a caller that cannot reach etcd
// should still be able to start, so callers typically treat a non-nil
// error here as "run with defaults" rather than exiting, unlike the
// teacher's original log.Fatalf.
func NewRigelClient(etcdEndpoints string) (*rigel.Rigel, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{etcdEndpoints},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		log.Printf("failed to create etcd client: %v", err)
		return nil, err
	}

	etcdStorage := &etcd.EtcdStorage{Client: cli}
	rigelClient := rigel.New(etcdStorage)

	return rigelClient, nil
}
