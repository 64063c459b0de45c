package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-hclog"

	"github.com/ambridge-relay/relayer/core"
)

// ambMessageView is the JSON shape returned for each matching message: the
// message's identity, route and its bounty's status. The raw
// Payload/MessageCtx/RecoveryContext bytes are not included.
type ambMessageView struct {
	MessageIdentifier string `json:"messageIdentifier"`
	Amb               string `json:"amb"`
	SourceChain       uint64 `json:"sourceChain"`
	DestinationChain  uint64 `json:"destinationChain"`
	Status            string `json:"status"`
}

func newGetAMBsHandler(store core.Store, logger hclog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txHashParam := r.URL.Query().Get("transactionHash")
		if txHashParam == "" {
			http.Error(w, "transactionHash query parameter is required", http.StatusBadRequest)

			return
		}

		if !isHexHash(txHashParam) {
			http.Error(w, "transactionHash must be a 32-byte hex string", http.StatusBadRequest)

			return
		}

		txHash := common.HexToHash(txHashParam)

		views := []ambMessageView{}

		err := store.ScanBountiesByTransactionHash(txHash, func(b core.Bounty) error {
			amb, found, err := store.GetAmb(b.MessageIdentifier)
			if err != nil || !found {
				return err
			}

			views = append(views, ambMessageView{
				MessageIdentifier: amb.MessageIdentifier.Hex(),
				Amb:               amb.Amb,
				SourceChain:       amb.SourceChain,
				DestinationChain:  amb.DestinationChain,
				Status:            bountyStatusLabel(b),
			})

			return nil
		})
		if err != nil {
			logger.Error("getAMBs: scan failed", "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(views); err != nil {
			logger.Error("getAMBs: encode failed", "err", err)
		}
	}
}

func bountyStatusLabel(b core.Bounty) string {
	return b.Status.String()
}

func isHexHash(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return false
	}

	_, err := hex.DecodeString(s)

	return err == nil
}
