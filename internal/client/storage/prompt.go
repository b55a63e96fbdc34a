package storage

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/atinyakov/LinkKeeper/internal/models"
)

// PromptForPassphrase reads the sync passphrase from stdin. An empty
// answer disables sensitive-field encryption for the session.
func PromptForPassphrase() string {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("Enter sync passphrase (empty to skip encryption): ")
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

// PromptForLink interactively collects a new bookmark from stdin.
func PromptForLink() models.Link {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Print("Enter title: ")
	scanner.Scan()
	title := strings.TrimSpace(scanner.Text())

	fmt.Print("Enter URL: ")
	scanner.Scan()
	url := strings.TrimSpace(scanner.Text())

	fmt.Print("Enter category id (optional): ")
	scanner.Scan()
	category := strings.TrimSpace(scanner.Text())

	return models.Link{Title: title, URL: url, CategoryID: category}
}

// PromptConflictChoice asks the user which side of a conflict wins.
func PromptConflictChoice(local, remote models.SyncMeta) models.ConflictChoice {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("Sync conflict: local v%d (device %s) vs remote v%d (device %s)\n",
		local.Version, local.DeviceID, remote.Version, remote.DeviceID)
	for {
		fmt.Print("Keep [local/remote]: ")
		if !scanner.Scan() {
			return models.KeepRemote
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "local", "l":
			return models.KeepLocal
		case "remote", "r":
			return models.KeepRemote
		}
	}
}
