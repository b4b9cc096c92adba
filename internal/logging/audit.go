package logging

import (
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// AuditEvent is one transaction sent on behalf of the connected account
type AuditEvent struct {
	Operation string         // approve, buy_package, claim, set_params, ...
	Actor     common.Address // signer
	Target    string         // contract, package or stake the tx acted on
	Details   string
}

// Audit logs the outcome of ev. A nil err is a confirmed transaction; the
// receipt may be nil in mock mode.
func Audit(ev AuditEvent, receipt *ethtypes.Receipt, err error) {
	attrs := []any{
		"audit", true,
		"operation", ev.Operation,
		Account(ev.Actor),
		"target", ev.Target,
	}
	if ev.Details != "" {
		attrs = append(attrs, "details", ev.Details)
	}
	if receipt != nil {
		attrs = append(attrs, TxHash(receipt.TxHash))
		if receipt.BlockNumber != nil {
			attrs = append(attrs, slog.Uint64("block", receipt.BlockNumber.Uint64()))
		}
	}
	if err != nil {
		Logger().Warn("audit", append(attrs, "result", "failure", Err(err))...)
		return
	}
	Logger().Info("audit", append(attrs, "result", "success")...)
}
