package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stemsi/classqa/internal/config"
	"github.com/stemsi/classqa/internal/database"
	"github.com/stemsi/classqa/internal/logger"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/repository"
	"github.com/stemsi/classqa/internal/service"
	"golang.org/x/term"
)

func main() {
	var name, email string
	flag.StringVar(&name, "name", "", "Professor display name")
	flag.StringVar(&email, "email", "", "Professor email (optional)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Services ───────────────────────────────────────────
	userService := service.NewUserService(repository.NewUserRepository(pool), log)
	ticketService := service.NewTicketService(cfg)

	// ─── CLI Input ─────────────────────────────────────────────────────
	// Prompt only when attached to a terminal; scripts pass flags.
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	reader := bufio.NewReader(os.Stdin)

	if name == "" && interactive {
		fmt.Println("=== Create New Professor ===")
		fmt.Print("Enter Name: ")
		name, _ = reader.ReadString('\n')
		fmt.Print("Enter Email (optional): ")
		email, _ = reader.ReadString('\n')
	}
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		fmt.Println("Error: Name is required")
		os.Exit(2)
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	user, err := userService.Create(ctx, model.CreateParticipantRequest{
		Name:  name,
		Email: email,
		Type:  model.UserTypeProfessor,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create professor")
	}

	ticket, err := ticketService.Issue(user)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue ticket")
	}

	fmt.Printf("\nSuccess! Professor '%s' created with ID: %s\n", user.Name, user.ID)
	fmt.Printf("Ticket (valid %s):\n%s\n", cfg.TicketExpiry, ticket)
}
