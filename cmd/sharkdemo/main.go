package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/scorpion-framework/shark"
	"github.com/scorpion-framework/shark/where"
)

type widget struct {
	WidgetID int    `db:"primary_key,auto_increment"`
	Name     string `db:"length=64"`
	Count    int    ``
}

func (widget) TableName() string { return "sharkdemo_widget" }

func main() {
	backend := flag.String("backend", "postgres", "postgres or mysql")
	host := flag.String("host", "localhost", "server host")
	port := flag.Int("port", 0, "server port (0 = backend default)")
	database := flag.String("database", "lab01", "database name")
	username := flag.String("username", "root", "username")
	password := flag.String("password", "", "password")
	flag.Parse()

	ctx := context.Background()
	var db *shark.Database
	var err error

	switch *backend {
	case "postgres":
		db, err = shark.ConnectPostgres(ctx, shark.PostgresConfig{
			Host: *host, Port: *port, Database: *database, Username: *username, Password: *password,
		})
	case "mysql":
		db, err = shark.ConnectMySQL(ctx, shark.MySQLConfig{
			Host: *host, Port: *port, Database: *database, Username: *username, Password: *password,
		})
	default:
		fmt.Fprintf(os.Stderr, "sharkdemo: unknown backend %q\n", *backend)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sharkdemo: connect failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("===========================================================================")

	if err := shark.Init[widget](db); err != nil {
		fmt.Fprintf(os.Stderr, "sharkdemo: init failed: %v\n", err)
		os.Exit(1)
	}

	row := &widget{Name: "bolt", Count: 5}
	if err := shark.Insert(db, row, true); err != nil {
		fmt.Println(err)
	} else {
		fmt.Printf("widgetId=%d\n", row.WidgetID)
	}

	rows, err := shark.Select[widget](db, where.Var("name").Equals("bolt").Where(), nil, nil)
	if err != nil {
		fmt.Println(err)
	} else {
		fmt.Printf("%v\n", rows)
	}
}
