package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"talk-lab/domain"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"/tmp/talk-lab/badger"`
	Colours        bool   `envconfig:"ROOMCTL_COLOURS" default:"true"`
}

type roomRow struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Type  int    `json:"type"`
	Name  string `json:"name"`
}

// roomctl prints the room table straight from the store, without going
// through the HTTP surface. Handy when the server is down or misbehaving.
func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	opts := badger.DefaultOptions(cfg.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	header := "talk-lab rooms"
	if cfg.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Token", "Type", "Name", "Users", "Guests"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("room:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var row roomRow
				if err := json.Unmarshal(v, &row); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}
				users, guests := countParticipants(txn, row.ID)
				table.Append([]string{
					row.Token,
					domain.RoomType(row.Type).String(),
					row.Name,
					fmt.Sprintf("%d", users),
					fmt.Sprintf("%d", guests),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func countParticipants(txn *badger.Txn, roomID string) (int, int) {
	users, guests := 0, 0
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
	defer it.Close()

	prefix := []byte("part:" + roomID + ":")
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		sub := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
		if strings.HasPrefix(sub, "g:") {
			guests++
		} else {
			users++
		}
	}
	return users, guests
}
