// setupcluster is a worked example of bringing up a fresh cluster with the
// native Admin API: create the cluster, register three nodes and declare
// one resource. This library ships no controller, so unlike the original
// vagrant-based script this does not start or stop one -- a resource's
// partitions stay unassigned until an external controller process (or a
// human, via Admin.AddResource's preference lists) places them.
package main

import (
	"os"

	"github.com/helixio/gohelix"

	log "github.com/sirupsen/logrus"
)

func main() {
	zkSvr := "localhost:2181"
	if v := os.Getenv("ZOOKEEPER"); v != "" {
		zkSvr = v
	}

	cluster := "MYCLUSTER"
	resource := "myDB"
	partitions := 6

	admin := gohelix.Admin{ZkSvr: zkSvr}

	log.Println("Drop MYCLUSTER")
	if err := admin.DropCluster(cluster); err != nil && err != gohelix.ErrNodeNotExist {
		log.WithError(err).Warn("failed to drop cluster (may not have existed)")
	}

	log.Println("Create MYCLUSTER")
	if err := admin.AddCluster(cluster); err != nil {
		log.WithError(err).Fatal("failed to create cluster")
	}

	if err := admin.SetConfig(cluster, "CLUSTER", map[string]string{"allowParticipantAutoJoin": "true"}); err != nil {
		log.WithError(err).Fatal("failed to enable auto-join")
	}

	for _, port := range []string{"12913", "12914", "12915"} {
		node := "localhost_" + port
		log.Printf("Add node %s", node)
		if err := admin.AddNode(cluster, node); err != nil {
			log.WithError(err).Fatalf("failed to add node %s", node)
		}
	}

	log.Printf("Add resource %s", resource)
	if err := admin.AddResource(cluster, resource, partitions, "MasterSlave"); err != nil {
		log.WithError(err).Fatal("failed to add resource")
	}

	if err := admin.EnableResource(cluster, resource); err != nil {
		log.WithError(err).Fatal("failed to enable resource")
	}

	log.Println("SUCCESS!")
}
