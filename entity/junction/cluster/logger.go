package cluster

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "cluster")
