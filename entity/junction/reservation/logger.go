package reservation

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "reservation")
