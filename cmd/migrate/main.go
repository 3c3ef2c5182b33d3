// Comando de migraciones de esquema (goose sobre PostgreSQL).
//
// Uso:
//
//	go run ./cmd/migrate            # aplica todas las migraciones pendientes
//	go run ./cmd/migrate down       # revierte la última
//	go run ./cmd/migrate status
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/storemaster/storemaster-api/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("goose: cargar configuración: %v", err)
	}

	var migrationsDir string
	flag.StringVar(&migrationsDir, "dir", "./migrations", "directorio con los archivos de migración")
	flag.Parse()

	db, err := sql.Open("pgx", cfg.DB.ConnectionString())
	if err != nil {
		log.Fatalf("goose: conectar a la base de datos: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Fatalf("goose: cerrar conexión: %v", err)
		}
	}()

	arguments := flag.Args()
	if len(arguments) == 0 {
		arguments = []string{"up"}
	}

	command := arguments[0]
	var args []string
	if len(arguments) > 1 {
		args = arguments[1:]
	}

	if err := goose.Run(command, db, migrationsDir, args...); err != nil {
		log.Fatalf("goose %v: %v", command, err)
	}

	fmt.Printf("goose %s ok\n", command)
}
