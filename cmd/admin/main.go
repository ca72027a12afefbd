package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"pratojusto/backend/internal/config"
	"pratojusto/backend/internal/identity"
	"pratojusto/backend/internal/lifecycle"
	"pratojusto/backend/internal/logger"
	"pratojusto/backend/internal/models"
	"pratojusto/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  token <email>                          mint a bearer token for a user
  requests <donation_id>                 list the requests of a donation
  cancel <request_id> <acting_user_id>   cancel a request on behalf of a participant`

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logger.New(cfg.Log)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	// Redis is only used to push cancel notices to connected users.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()

	s := storage.NewStorageService(db, rdb)
	ctx := context.Background()

	switch os.Args[1] {
	case "token":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin token <email>")
			os.Exit(1)
		}
		user, err := s.FindUserByEmail(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Error finding user: %v", err)
		}
		token, err := identity.NewDirectory(cfg.Auth).Issue(user)
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)

	case "requests":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin requests <donation_id>")
			os.Exit(1)
		}
		donationID := parseID(os.Args[2], "donation id")
		reqs, err := s.ListRequestsByDonation(ctx, donationID)
		if err != nil {
			log.Fatalf("Error listing requests: %v", err)
		}
		printRequests(reqs)

	case "cancel":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin cancel <request_id> <acting_user_id>")
			os.Exit(1)
		}
		requestID := parseID(os.Args[2], "request id")
		actorID := parseID(os.Args[3], "acting user id")

		if err := cancelRequest(ctx, lifecycle.NewManager(s, s, log), s, s, requestID, actorID, log); err != nil {
			log.Fatalf("Error cancelling request: %v", err)
		}
		fmt.Printf("Request %d has been cancelled.\n", requestID)

	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func parseID(raw, what string) uint {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		fmt.Printf("Invalid %s. Please provide a positive integer.\n", what)
		os.Exit(1)
	}
	return uint(id)
}

func printRequests(reqs []models.Request) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREQUESTER\tSTATUS\tCREATED\tUPDATED")
	for _, r := range reqs {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", r.ID, r.RequesterID, r.Status,
			r.CreatedAt.Format("2006-01-02 15:04"), r.UpdatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
}

type canceller interface {
	Cancel(ctx context.Context, requestID, actorID uint) (*lifecycle.Outcome, error)
}

type threadCloser interface {
	DeactivateThreadByRequest(ctx context.Context, requestID uint) error
}

// cancelRequest cancels the request, closes its chat thread and publishes the
// notices, leaving the same state as the HTTP cancel route.
func cancelRequest(ctx context.Context, c canceller, threads threadCloser, b storage.Broker, requestID, actorID uint, log logrus.FieldLogger) error {
	out, err := c.Cancel(ctx, requestID, actorID)
	if err != nil {
		return err
	}
	if err := threads.DeactivateThreadByRequest(ctx, requestID); err != nil {
		log.WithError(err).WithField("request_id", requestID).Warn("could not deactivate chat thread")
	}
	notify(ctx, b, out, log)
	return nil
}

// notify publishes the outcome's notices on the delivery channel so that
// running servers push them to connected users.
func notify(ctx context.Context, b storage.Broker, out *lifecycle.Outcome, log logrus.FieldLogger) {
	for _, n := range out.Notices() {
		env, err := models.NewEnvelope(models.EnvelopeRequestUpdate, n.Event)
		if err != nil {
			log.WithError(err).Warn("encode notice")
			continue
		}
		if err := b.PublishDelivery(ctx, models.Delivery{UserID: n.UserID, Envelope: env}); err != nil {
			log.WithError(err).WithField("user_id", n.UserID).Warn("could not publish notice")
		}
	}
}
