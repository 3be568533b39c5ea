package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/JhonAQ/te-toca-web-sub000/internal/auth"
	"github.com/JhonAQ/te-toca-web-sub000/internal/config"
	"github.com/JhonAQ/te-toca-web-sub000/internal/database"
	"github.com/JhonAQ/te-toca-web-sub000/internal/database/migrations"
	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

func main() {
	command := flag.String("cmd", "up", "migration command: up, down, to, version")
	target := flag.Uint("version", 0, "target version for -cmd=to")
	seed := flag.Bool("seed", false, "insert the demo tenant after migrating up")
	flag.Parse()

	cfg, _ := config.Load()
	log := logger.NewLogger("migrate", cfg.Log.Dir)
	defer log.Close()

	ctx := context.Background()
	bunDB, err := database.ConnectPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.Database.MigrationsDir}, log)
	defer runner.Close()

	switch *command {
	case "up":
		err = runner.RunMigrations()
	case "down":
		err = runner.MigrateDown()
	case "to":
		err = runner.MigrateTo(*target)
	case "version":
		var version uint
		var dirty bool
		version, dirty, err = runner.Version()
		if err == nil {
			log.Info("DATABASE", fmt.Sprintf("schema version %d (dirty: %t)", version, dirty))
		}
	default:
		err = fmt.Errorf("unknown command %q", *command)
	}
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}

	if *seed {
		if err := seedDemo(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("seed failed: %v", err))
		}
		log.Info("DATABASE", "✅ Demo data seeded")
	}
}

// seedDemo inserts one tenant with a company, two queues and an admin worker.
// Rows that already exist are left untouched.
func seedDemo(ctx context.Context, db *bun.DB) error {
	now := time.Now().UTC()
	hash, err := auth.HashPassword("admin1234")
	if err != nil {
		return err
	}

	rows := []interface{}{
		&models.Tenant{ID: "demo", Name: "Demo", Slug: "demo", IsActive: true, Settings: models.TenantSettings{MaxQueues: 10}, CreatedAt: now},
		&models.Company{ID: "demo-bank", TenantID: "demo", Name: "Banco Demo", Category: "bank", IsActive: true, CreatedAt: now, UpdatedAt: now},
		&models.Queue{ID: "demo-cashier", TenantID: "demo", CompanyID: "demo-bank", Name: "Caja", Priority: 1, IsActive: true, AverageServiceTime: 5, CreatedAt: now, UpdatedAt: now},
		&models.Queue{ID: "demo-platform", TenantID: "demo", CompanyID: "demo-bank", Name: "Plataforma", IsActive: true, AverageServiceTime: 10, CreatedAt: now, UpdatedAt: now},
		&models.Worker{ID: "demo-admin", TenantID: "demo", Name: "Admin", Username: "admin", PasswordHash: hash, Role: models.RoleAdmin, IsActive: true, CreatedAt: now, UpdatedAt: now},
	}
	for _, row := range rows {
		if _, err := db.NewInsert().Model(row).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("insert %T: %w", row, err)
		}
	}
	return nil
}
