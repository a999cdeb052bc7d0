package pg

import (
	"database/sql"

	"go.uber.org/zap"
)

func closeRows(rows *sql.Rows, log *zap.SugaredLogger) {
	if rows != nil {
		if err := rows.Close(); err != nil {
			log.Errorw("closing rows", "error", err)
		}
	}
}
