// Public domain.

package kbprog

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// SetupLogging directs the standard logger to w at the named level, with
// format "text" or "json".
func SetupLogging(w io.Writer, level, format string) error {
	lv, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	switch format {
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	log.SetOutput(w)
	log.SetLevel(lv)
	return nil
}
