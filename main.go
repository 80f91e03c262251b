package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatrelay/bus"
	"chatrelay/config"
	"chatrelay/delivery"
	"chatrelay/logging"
	"chatrelay/models"
	"chatrelay/reply"
	"chatrelay/send"
	"chatrelay/storage"
)

func main() {
	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		log.Fatalf("startup failed while loading config: %v", err)
	}

	logger, err := logging.New(cfg.LogEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("startup failed while building logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	dataDir := filepath.Dir(cfgPath)
	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		log.Fatalf("startup failed while opening database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("database close error", zap.Error(err))
		}
	}()

	fmt.Printf("Identity:        %s\n", cfg.Username)
	fmt.Printf("Config File:     %s\n", cfgPath)
	fmt.Printf("Database File:   %s\n", dbPath)

	if bus.Canonicalize(cfg.Username) != config.AnonymousUsername {
		if err := bus.SeedIdentity(store, cfg.Username, cfg.DisplayName, cfg.Avatar); err != nil {
			log.Fatalf("startup failed while seeding directory: %v", err)
		}
	}

	var replier send.Replier
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		replier = reply.NewClient(reply.Config{
			BaseURL: cfg.ReplyBaseURL,
			APIKey:  apiKey,
			Model:   cfg.ReplyModel,
		})
		fmt.Println("Replies:         enabled")
	}

	// One lock set for every contact/group list writer in this process: the
	// poller's merges, interactive sends and generated replies.
	locks := bus.NewSessionLocks()

	sender := send.NewSender(cfg.Username, store, store, replier, locks, logger)
	defer sender.Stop()
	materializer := delivery.NewMaterializer(store, store, locks)
	poller := delivery.NewPoller(delivery.Config{
		Identity: cfg.Username,
		Interval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		Notifier: consoleNotifier{},
		Logger:   logger,
	}, store, materializer)

	poller.Start()
	defer poller.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Status:          running (press Ctrl+C to stop)")
	fmt.Println("Commands:        /add <username> | /sim <name> | /send <name> <message>")
	go runCommandLoop(cfg.Username, store, locks, sender, logger)

	<-ctx.Done()
	fmt.Println("Status:          shutting down")
}

// consoleNotifier stands in for the UI alert surface of the host client.
type consoleNotifier struct{}

func (consoleNotifier) Notify(sender string, decision delivery.Decision) {
	if decision.ShowBadge {
		fmt.Printf("* new message from %s\n", sender)
	}
	if decision.PlaySound {
		fmt.Print("\a")
	}
}

// runCommandLoop is a minimal interactive surface for exercising the relay
// between instances. It is not the real client UI.
func runCommandLoop(identity string, store *storage.Store, locks *bus.SessionLocks, sender *send.Sender, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		command, rest, _ := strings.Cut(line, " ")
		switch command {
		case "/add":
			if err := addContact(identity, store, locks, rest, true); err != nil {
				logger.Warn("add contact failed", zap.Error(err))
			}
		case "/sim":
			if err := addContact(identity, store, locks, rest, false); err != nil {
				logger.Warn("add contact failed", zap.Error(err))
			}
		case "/send":
			name, message, _ := strings.Cut(rest, " ")
			if err := sendToName(identity, store, sender, name, message); err != nil {
				logger.Warn("send failed", zap.Error(err))
			}
		default:
			fmt.Println("unknown command")
		}
	}
}

func addContact(identity string, store *storage.Store, locks *bus.SessionLocks, username string, real bool) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}

	unlock := locks.Acquire(identity)
	defer unlock()

	contacts, err := store.LoadContacts(identity)
	if err != nil {
		return err
	}
	key := bus.Canonicalize(username)
	for _, contact := range contacts {
		if bus.Canonicalize(contact.Username) == key || bus.Canonicalize(contact.Name) == key {
			return nil
		}
	}

	contacts = append(contacts, models.Contact{
		ID:         uuid.NewString(),
		Name:       username,
		Username:   username,
		Avatar:     bus.PlaceholderAvatar(username),
		IsRealUser: real,
	})
	return store.SaveContacts(identity, contacts)
}

func sendToName(identity string, store *storage.Store, sender *send.Sender, name, message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message is required")
	}

	contacts, err := store.LoadContacts(identity)
	if err != nil {
		return err
	}
	key := bus.Canonicalize(name)
	for _, contact := range contacts {
		if bus.Canonicalize(contact.Username) == key || bus.Canonicalize(contact.Name) == key {
			return sender.SendToContact(contact.ID, message, nil)
		}
	}
	return fmt.Errorf("no contact named %q", name)
}
