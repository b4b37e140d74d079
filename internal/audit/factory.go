package audit

import (
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"sgbridge/internal/constants"
)

// NewStore selects the audit backend by driver name. The caller owns the
// database handles; a nil handle for the selected driver is a wiring error.
func NewStore(driver string, db *sql.DB, mongoDB *mongo.Database) (Store, error) {
	switch driver {
	case constants.AuditDriverPostgres:
		if db == nil {
			return nil, fmt.Errorf("audit driver %q requires a postgres connection", driver)
		}
		return NewPostgresStore(db), nil
	case constants.AuditDriverMongoDB:
		if mongoDB == nil {
			return nil, fmt.Errorf("audit driver %q requires a mongodb connection", driver)
		}
		return NewMongoStore(mongoDB), nil
	case constants.AuditDriverNone, "":
		return NewNopStore(), nil
	default:
		return nil, fmt.Errorf("unknown audit driver %q", driver)
	}
}
