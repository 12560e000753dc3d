package cmd

import (
	"context"
	"fmt"
	"github.com/cpacia/bundlr/bundle"
	"github.com/cpacia/bundlr/repo"
	"github.com/pkg/errors"
	"io/ioutil"
	"strings"
)

// Upload signs a file into a bundle transaction and posts it to the relay.
type Upload struct {
	repo.Config
	File string   `long:"file" description:"File to upload" required:"true"`
	Tags []string `long:"tag" description:"Tag as name=value. May be repeated; order is kept."`
}

// Execute uploads the file.
func (x *Upload) Execute(args []string) error {
	tags, err := parseTags(x.Tags)
	if err != nil {
		return err
	}
	data, err := ioutil.ReadFile(x.File)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend, err := newBackend(cfg, nil)
	if err != nil {
		return err
	}
	client, err := newRelayClient(context.Background(), cfg, backend, nil, nil)
	if err != nil {
		return err
	}

	tx, err := client.CreateTransactionWithTags(data, tags)
	if err != nil {
		return err
	}
	id, err := tx.ID()
	if err != nil {
		return err
	}
	log.Debugf("Uploading bundle %s (%d bytes)", id, len(tx.Bytes()))

	ack, err := client.SendTransaction(context.Background(), tx)
	if err != nil {
		return err
	}
	green.Printf("Uploaded %s\n", id)
	fmt.Println(string(ack))
	return nil
}

func parseTags(raw []string) ([]bundle.Tag, error) {
	tags := make([]bundle.Tag, 0, len(raw))
	for _, s := range raw {
		i := strings.Index(s, "=")
		if i <= 0 {
			return nil, errors.Errorf("tag %q is not name=value", s)
		}
		tags = append(tags, bundle.NewTag(s[:i], s[i+1:]))
	}
	return tags, nil
}
