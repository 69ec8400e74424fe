// cmd/tools/watermark-admin/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tmis-business-guru/internal/common/config"
	"tmis-business-guru/internal/common/database"
	"tmis-business-guru/internal/models"
	"tmis-business-guru/internal/notifications"
)

func main() {
	getCmd := flag.NewFlagSet("get", flag.ExitOnError)
	setCmd := flag.NewFlagSet("set", flag.ExitOnError)
	clearCmd := flag.NewFlagSet("clear", flag.ExitOnError)

	getRole, getUser, getKind := watermarkFlags(getCmd)
	setRole, setUser, setKind := watermarkFlags(setCmd)
	clearRole, clearUser, clearKind := watermarkFlags(clearCmd)
	at := setCmd.String("at", "now", "Watermark time, RFC3339 or \"now\"")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "get":
		getCmd.Parse(os.Args[2:])
		store, kinds := mustOpen(ctx, getCmd, *getRole, *getUser, *getKind)
		for _, kind := range kinds {
			t, ok, err := store.Get(ctx, *getRole, *getUser, kind)
			exitOnError(err)
			if !ok {
				fmt.Printf("%s: not set\n", kind.StorageKey(*getRole, *getUser))
				continue
			}
			fmt.Printf("%s: %s\n", kind.StorageKey(*getRole, *getUser), t.Format(time.RFC3339Nano))
		}

	case "set":
		setCmd.Parse(os.Args[2:])
		if *setKind == "" {
			fmt.Println("Error: kind is required for set.")
			setCmd.Usage()
			os.Exit(1)
		}
		when, err := parseTime(*at)
		exitOnError(err)
		store, kinds := mustOpen(ctx, setCmd, *setRole, *setUser, *setKind)
		exitOnError(store.Set(ctx, *setRole, *setUser, kinds[0], when))
		fmt.Printf("%s set to %s (earlier values are kept)\n", kinds[0].StorageKey(*setRole, *setUser), when.Format(time.RFC3339Nano))

	case "clear":
		clearCmd.Parse(os.Args[2:])
		store, kinds := mustOpen(ctx, clearCmd, *clearRole, *clearUser, *clearKind)
		for _, kind := range kinds {
			exitOnError(store.Delete(ctx, *clearRole, *clearUser, kind))
			fmt.Printf("%s removed\n", kind.StorageKey(*clearRole, *clearUser))
		}

	default:
		help()
		os.Exit(1)
	}
}

func watermarkFlags(fs *flag.FlagSet) (role, user, kind *string) {
	role = fs.String("role", "", "Viewer role (admin, user)")
	user = fs.String("user", "", "Viewer user id")
	kind = fs.String("kind", "", "Watermark kind (last_visit, last_clear); empty means both")
	return role, user, kind
}

// mustOpen validates the common flags and opens the configured store.
func mustOpen(ctx context.Context, fs *flag.FlagSet, role, user, kind string) (notifications.WatermarkStore, []models.WatermarkKind) {
	if role == "" || user == "" {
		fmt.Println("Error: role and user are required.")
		fs.Usage()
		os.Exit(1)
	}
	kinds := []models.WatermarkKind{models.WatermarkLastVisit, models.WatermarkLastClear}
	if kind != "" {
		k, err := models.ParseWatermarkKind(kind)
		exitOnError(err)
		kinds = []models.WatermarkKind{k}
	}

	cfg, err := config.Load()
	exitOnError(err)

	var rc *database.RedisClient
	var pg *database.PostgresClient
	switch cfg.Notifications.Store {
	case config.StoreRedis:
		rc, err = database.NewRedis(cfg.Database.Redis)
		exitOnError(err)
	case config.StorePostgres:
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		exitOnError(err)
	case config.StoreMemory:
		fmt.Println("Warning: the memory store is per-process; nothing persists after this command.")
	}

	store, err := notifications.OpenStore(ctx, cfg.Notifications, rc, pg)
	exitOnError(err)
	return store, kinds
}

func parseTime(s string) (time.Time, error) {
	if s == "" || s == "now" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -at %q: %w", s, err)
	}
	return t, nil
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func help() {
	fmt.Println("Usage: watermark-admin <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  get    Show the watermarks of a viewer")
	fmt.Println("  set    Move a watermark forward")
	fmt.Println("  clear  Remove watermarks so the default lookback applies again")
}
