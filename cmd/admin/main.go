package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"astrona/backend/internal/models"
	"astrona/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  block <number> <target_number>     block target on behalf of number
  unblock <number> <target_number>   lift a block
  tombstone <thread_id> <message_id> delete a message
  online                             list users flagged online`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fatal("DATABASE_URL is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		fatal("failed to connect database", "error", err)
	}

	// Redis is only needed for the online listing.
	var rdb *redis.Client
	if url := os.Getenv("REDIS_URL"); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			fatal("invalid REDIS_URL", "error", err)
		}
		rdb = redis.NewClient(opts)
	}
	s := storage.NewStorageService(db, rdb)
	ctx := context.Background()

	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "block", "unblock":
		if len(args) != 2 {
			fmt.Printf("Usage: admin %s <number> <target_number>\n", command)
			os.Exit(1)
		}
		if err := setBlock(ctx, s, args[0], args[1], command == "block"); err != nil {
			fatal("failed to "+command, "error", err)
		}
		fmt.Printf("%s: %s -> %s done.\n", command, args[0], args[1])
	case "tombstone":
		if len(args) != 2 {
			fmt.Println("Usage: admin tombstone <thread_id> <message_id>")
			os.Exit(1)
		}
		msg, err := s.TombstoneMessage(ctx, args[0], args[1])
		if err != nil {
			fatal("failed to tombstone", "error", err)
		}
		if msg == nil {
			fmt.Println("Message not found.")
			os.Exit(1)
		}
		fmt.Printf("Message %s in %s deleted. Connected clients see it on next load.\n", msg.ID, msg.ThreadID)
	case "online":
		ids, err := s.OnlineUserIDs(ctx)
		if err != nil {
			fatal("failed to read presence", "error", err)
		}
		for _, userID := range ids {
			fmt.Println(userID)
		}
		fmt.Printf("%d online\n", len(ids))
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func setBlock(ctx context.Context, s storage.UserStore, number, targetNumber string, block bool) error {
	user, err := lookup(ctx, s, number)
	if err != nil {
		return err
	}
	target, err := lookup(ctx, s, targetNumber)
	if err != nil {
		return err
	}
	if block {
		return s.BlockUser(ctx, user.ID, target.ID)
	}
	return s.UnblockUser(ctx, user.ID, target.ID)
}

func lookup(ctx context.Context, s storage.UserStore, number string) (*models.User, error) {
	user, err := s.GetUserByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("number %s: %w", number, storage.ErrNotFound)
	}
	return user, nil
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
