// Package dialect defines the driver contracts shared by relkit's SQL layer.
//
// A Driver executes statements built by dialect/sql and hands out transactions.
// Three engines are recognized:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// Opening a driver:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	db := query.New(drv)
package dialect
