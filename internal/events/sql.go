package events

import (
	"context"

	"github.com/sua-org/cam-events/internal/core"
)

// sqlNewFile logs a created file to the database when its subtype is in the
// configured mask. Lost connections are retried once by the connection.
func sqlNewFile(dc *Context, ev core.Event) {
	if dc.DB == nil || dc.Conf.Database.Query == "" {
		return
	}
	ft := ev.FileType()
	if ft&dc.Conf.SQLMask() == 0 {
		return
	}

	query := dc.expand(dc.Conf.Database.Query, dc.when(ev), ev.Filename, ft)
	if err := dc.DB.Exec(context.Background(), query); err != nil {
		dc.log.WithField("backend", dc.DB.Backend()).Errorf("sql query failed: %v", err)
	}
}
