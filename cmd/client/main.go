package main

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/LinkKeeper/internal/client/storage"
	"github.com/atinyakov/LinkKeeper/internal/client/syncer"
	"github.com/atinyakov/LinkKeeper/internal/client/transport"
	"github.com/atinyakov/LinkKeeper/internal/config"
	"github.com/atinyakov/LinkKeeper/internal/logger"
	"github.com/atinyakov/LinkKeeper/internal/models"
)

var (
	version   string
	buildDate string
)

// repl runs the interactive shell loop, accepting commands to manage
// bookmarks. Every mutation notifies the sync engine so the change is
// pushed after its debounce window.
func repl(ctx context.Context, store *storage.Store, engine *syncer.Engine) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("linkkeeper> ")
		if !scanner.Scan() {
			// Treat EOF like closing a browser tab: flush pending work.
			engine.PageHide()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Println("Available commands: help, add, list, click <id>, delete <id>, addcat <name>, theme <mode>, sync, pull, resolve, exit")
		case "add":
			l := store.AddLink(storage.PromptForLink())
			_ = store.Save()
			fmt.Printf("Added link %s\n", l.ID)
			engine.NotifyChange()
		case "list":
			p := store.BuildLocalSyncPayload()
			for _, l := range p.Links {
				fmt.Printf("%s  %s  %s  clicks=%d\n", l.ID, l.Title, l.URL, l.AdminClicks)
			}
		case "click":
			if len(args) < 2 {
				fmt.Println("Usage: click <id>")
				continue
			}
			if !store.RecordClick(args[1]) {
				fmt.Println("Link not found")
				continue
			}
			_ = store.Save()
			engine.NotifyChange()
		case "delete":
			if len(args) < 2 {
				fmt.Println("Usage: delete <id>")
				continue
			}
			if !store.DeleteLink(args[1]) {
				fmt.Println("Link not found")
				continue
			}
			_ = store.Save()
			fmt.Println("Link deleted")
			engine.NotifyChange()
		case "addcat":
			if len(args) < 2 {
				fmt.Println("Usage: addcat <name>")
				continue
			}
			c := store.AddCategory(models.Category{Name: strings.Join(args[1:], " ")})
			_ = store.Save()
			fmt.Printf("Added category %s\n", c.ID)
			engine.NotifyChange()
		case "theme":
			if len(args) < 2 {
				fmt.Println("Usage: theme <mode>")
				continue
			}
			store.SetThemeMode(args[1])
			_ = store.Save()
			engine.NotifyChange()
		case "sync":
			engine.ManualSync(ctx)
			fmt.Println("Sync requested")
		case "pull":
			engine.ManualPull(ctx)
			fmt.Println("Pull requested")
		case "resolve":
			conflict := engine.Conflict()
			if conflict == nil {
				fmt.Println("No open conflict")
				continue
			}
			choice := storage.PromptConflictChoice(conflict.LocalData.Meta, conflict.RemoteData.Meta)
			if err := engine.ResolveConflict(ctx, choice); err != nil {
				fmt.Printf("Resolve failed: %v\n", err)
			} else {
				fmt.Println("Conflict resolved")
			}
		case "exit":
			engine.PageHide()
			fmt.Println("Bye")
			return
		default:
			fmt.Println("Unknown command. Type 'help' for a list of commands.")
		}
	}
}

// main wires the local store, HTTP transport and sync engine together
// and starts the interactive shell.
func main() {
	options := config.Parse()

	zl := logger.New()
	if err := zl.Init("Info"); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Log.Sync() }()

	fmt.Printf("LinkKeeper Client\nVersion: %s\nBuild Date: %s\n",
		cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))

	store, err := storage.Open(options.StorePath, zl.Log)
	if err != nil {
		log.Fatalf("failed to open local store: %v", err)
	}

	backend := transport.New(
		&http.Client{Timeout: 15 * time.Second},
		options.ServerURL,
		options.Token,
		store,
		zl.Log,
	)

	engine, err := syncer.NewEngine(syncer.Options{
		Backend: backend,
		Local:   store,
		Logger:  zl.Log,
		OnError: func(err error) {
			fmt.Printf("\nSync error: %v\nlinkkeeper> ", err)
		},
		OnEncryptWarning: func(err error) {
			fmt.Printf("\nEncryption warning: %v\nlinkkeeper> ", err)
		},
		OnConflict: func(*models.SyncConflict) {
			fmt.Print("\nSync conflict detected, run 'resolve' to pick a side\nlinkkeeper> ")
		},
		ClearAdminSession: func() {
			fmt.Print("\nAdmin session expired, now read-only\nlinkkeeper> ")
		},
	})
	if err != nil {
		log.Fatalf("failed to create sync engine: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	engine.Bootstrap(ctx)

	if pass := storage.PromptForPassphrase(); pass != "" {
		store.SetPassphrase(pass)
		engine.SetPassword(pass)
	}

	repl(ctx, store, engine)
}
