// trace watches a Helix cluster's external view, live instances, ideal
// states and controller messages and logs every change as it happens. It is
// a pure spectator: it never joins the cluster as a participant.
package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/codegangsta/cli"
	"github.com/helixio/gohelix"

	log "github.com/sirupsen/logrus"
)

var (
	lastLiveInstances map[string]gohelix.Record
	mutex             sync.Mutex
	manager           *gohelix.HelixManager
	tracer            *gohelix.Spectator
)

func init() {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

func main() {
	app := cli.NewApp()
	app.Name = "trace"
	app.Usage = "watch a helix cluster's external view, live instances and ideal state"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "zkSvr, z",
			Usage:  "zookeeper connection string",
			Value:  "localhost:2181",
			EnvVar: "ZOOKEEPER",
		},
		cli.StringFlag{
			Name:  "cluster, c",
			Usage: "cluster name",
		},
		cli.IntFlag{
			Name:  "verbose, v",
			Usage: "verbosity level (0 or 1)",
			Value: 0,
		},
	}
	app.Action = func(c *cli.Context) {
		cluster := c.String("cluster")
		if cluster == "" {
			log.Fatal("missing required --cluster flag")
		}
		trace(c.String("zkSvr"), cluster, c.Int("verbose"))
	}

	app.Run(os.Args)
}

func trace(zk string, cluster string, verboseLevel int) {
	manager = gohelix.NewHelixManager(zk)
	tracer = manager.NewSpectator(cluster)

	context := gohelix.NewContext()
	context.Set("VerboseLevel", verboseLevel)
	tracer.SetContext(context)

	tracer.AddExternalViewChangeListener(externalViewChangeListener)
	tracer.AddLiveInstanceChangeListener(liveInstanceChangeListener)
	tracer.AddIdealStateChangeListener(idealStateChangeListener)
	tracer.AddControllerMessageListener(controllerMessagesListener)
	tracer.AddInstanceConfigChangeListener(instanceConfigChangeListener)

	if err := tracer.Connect(); err != nil {
		log.WithError(err).Fatal("unable to connect to zookeeper")
	}
	defer tracer.Disconnect()

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

func getVerboseLevel(context *gohelix.Context) int {
	vl := context.Get("VerboseLevel")
	if vl == nil {
		return 0
	}
	return vl.(int)
}

func getMapFromRecords(records []*gohelix.Record) map[string]gohelix.Record {
	result := map[string]gohelix.Record{}

	for _, r := range records {
		result[r.ID] = *r
	}

	return result
}

func diffRecords(before map[string]gohelix.Record, after map[string]gohelix.Record) ([]string, []string) {
	added := []string{}
	removed := []string{}

	for k := range before {
		if _, ok := after[k]; !ok {
			removed = append(removed, k)
		}
	}

	for k := range after {
		if _, ok := before[k]; !ok {
			added = append(added, k)
		}
	}

	return added, removed
}

func externalViewChangeListener(ev []*gohelix.Record, context *gohelix.Context) {
	verboseLevel := getVerboseLevel(context)

	switch verboseLevel {
	case 0:
		log.WithField("CALLBACK", "onExternalViewChange").Infof("number of resource groups: %d", len(ev))
	}
}

func idealStateChangeListener(is []*gohelix.Record, context *gohelix.Context) {
	verboseLevel := getVerboseLevel(context)

	switch verboseLevel {
	case 0:
		log.WithField("CALLBACK", "onIdealStateChange").Infof("number of resource groups: %d", len(is))
	}
}

func currentStateChangeListener(instance string, currentState []*gohelix.Record, context *gohelix.Context) {
	verboseLevel := getVerboseLevel(context)

	switch verboseLevel {
	case 0:
		log.WithField("CALLBACK", "onStateChange").Infof("instance:%s", instance)
	}
}

func liveInstanceChangeListener(liveInstances []*gohelix.Record, context *gohelix.Context) {
	verboseLevel := getVerboseLevel(context)

	currentLiveInstances := getMapFromRecords(liveInstances)
	added, removed := diffRecords(lastLiveInstances, currentLiveInstances)

	for _, i := range added {
		log.Printf("Add CurrentStateChangedListener for live instance: %s", i)
		tracer.AddCurrentStateChangeListener(i, currentStateChangeListener)
		log.Printf("Add MessageListener for live instance: %s", i)
		tracer.AddMessageListener(i, instanceMessageListener)
	}

	mutex.Lock()
	lastLiveInstances = currentLiveInstances
	mutex.Unlock()

	switch verboseLevel {
	case 0:
		log.WithField("CALLBACK", "onLiveInstancesChange").Infof("number of live instances is %d. OFFLINE -> ONLINE: %d, ONLINE -> OFFLINE: %d", len(liveInstances), len(added), len(removed))
	}
}

func controllerMessagesListener(messages []*gohelix.Record, context *gohelix.Context) {
	verboseLevel := getVerboseLevel(context)

	switch verboseLevel {
	case 0:
		log.WithField("CALLBACK", "onMessage").Infof("Number of controller messages is %d", len(messages))
	}
}

func instanceMessageListener(instance string, messages []*gohelix.Record, context *gohelix.Context) {
	verboseLevel := getVerboseLevel(context)

	switch verboseLevel {
	case 0:
		log.WithField("CALLBACK", "onMessage").Infof("Instance %s received new messages.", instance)
	case 1:
		msgStr := ""
		for _, m := range messages {
			msgStr += m.String()
			msgStr += "\n"
		}

		log.WithField("CALLBACK", "onMessage").Infof("Instance %s received messages: %s", instance, msgStr)
	}
}

func instanceConfigChangeListener(configs []*gohelix.Record, context *gohelix.Context) {
	verboseLevel := getVerboseLevel(context)

	switch verboseLevel {
	case 0:
		log.WithField("CALLBACK", "onInstanceConfigChange").Infof("Number of instances configs is %d", len(configs))
	}
}
