package cmd

import (
	"context"
	"errors"
	"github.com/cpacia/bundlr/models"
	"github.com/cpacia/bundlr/repo"
)

// Notify completes fundings that were sent but not yet credited by the
// relay. With --txid only that transaction is reported to the relay.
type Notify struct {
	repo.Config
	TxID string `long:"txid" description:"Notify the relay of this transaction only"`
}

// Execute resumes pending fundings.
func (x *Notify) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	r, err := repo.NewRepo(cfg.DataDir)
	if err != nil {
		return err
	}
	defer r.Close()

	backend, err := newBackend(cfg, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FundTimeout)
	defer cancel()

	client, err := newRelayClient(ctx, cfg, backend, r, nil)
	if err != nil {
		return err
	}

	if x.TxID != "" {
		txID := models.TxID(x.TxID)
		if _, err := client.NotifyFunding(ctx, txID); err != nil {
			return err
		}
		if err := r.Journal().MarkState(txID, models.FundingStateNotified, nil); err != nil && !errors.Is(err, repo.ErrRecordNotFound) {
			log.Warningf("Error updating journal for %s: %s", txID, err)
		}
		green.Printf("Relay acknowledged %s\n", x.TxID)
		return nil
	}

	credited, err := client.ResumePending(ctx)
	for _, txID := range credited {
		green.Printf("Relay credited %s\n", txID)
	}
	if err != nil {
		return err
	}
	if len(credited) == 0 {
		yellow.Println("No pending fundings")
	}
	return nil
}
