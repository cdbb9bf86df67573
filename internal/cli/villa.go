package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/loom/internal/villa"
)

// proofFlags are the fields a withdraw proof is signed over.
type proofFlags struct {
	character uint64
	nonce     string
	expires   int64
}

func (p *proofFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&p.character, "character", 0, "held character id")
	cmd.Flags().StringVar(&p.nonce, "nonce", "0", "proof nonce (decimal)")
	cmd.Flags().Int64Var(&p.expires, "expires", 0, "expiry as unix seconds")
	_ = cmd.MarkFlagRequired("character")
	_ = cmd.MarkFlagRequired("expires")
}

func (p *proofFlags) parse() (*uint256.Int, time.Time, error) {
	nonce, err := uint256.FromDecimal(p.nonce)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("--nonce: %w", err)
	}
	return nonce, time.Unix(p.expires, 0), nil
}

// openVilla builds the villa configured for this invocation.
func openVilla(a *app) (*villa.Villa, error) {
	addr, err := a.settings.address(cfgKeyVillaAddress)
	if err != nil {
		return nil, err
	}
	admin, err := a.settings.address(cfgKeyVillaAdmin)
	if err != nil {
		return nil, err
	}
	if addr == (common.Address{}) || admin == (common.Address{}) {
		return nil, fmt.Errorf("villa not configured: set %s and %s", cfgKeyVillaAddress, cfgKeyVillaAdmin)
	}
	return villa.New(a.engine, addr, admin, villa.WithLogger(a.log.Named("villa"))), nil
}

func newVillaCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "villa",
		Short: "Custodial characters held until withdrawn with an admin proof",
	}

	var (
		signProof proofFlags
		keyHex    string
	)
	sign := &cobra.Command{
		Use:   "sign",
		Short: "Sign a withdraw proof with the villa admin key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
			if err != nil {
				return fmt.Errorf("--key: %w", err)
			}
			nonce, expires, err := signProof.parse()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				v, err := openVilla(a)
				if err != nil {
					return err
				}
				sig, err := villa.Sign(key, villa.Digest(v.Address(), signProof.character, nonce, expires))
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]string{"signature": hexutil.Encode(sig)},
					"%s", hexutil.Encode(sig))
			})
		},
	}
	signProof.register(sign)
	sign.Flags().StringVar(&keyHex, "key", "", "admin private key (hex)")
	_ = sign.MarkFlagRequired("key")

	var (
		withdrawProof proofFlags
		to, sigHex    string
	)
	withdraw := &cobra.Command{
		Use:   "withdraw",
		Short: "Move a held character to its owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := parseAddress("--to", to)
			if err != nil {
				return err
			}
			sig, err := hexutil.Decode(sigHex)
			if err != nil {
				return fmt.Errorf("--sig: %w", err)
			}
			nonce, expires, err := withdrawProof.parse()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				v, err := openVilla(a)
				if err != nil {
					return err
				}
				err = v.Withdraw(cmd.Context(), villa.Proof{
					To:          recipient,
					CharacterID: withdrawProof.character,
					Nonce:       nonce,
					Expires:     expires,
					Signature:   sig,
				})
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"character_id": withdrawProof.character},
					"Character %d withdrawn to %s", withdrawProof.character, recipient.Hex())
			})
		},
	}
	withdrawProof.register(withdraw)
	withdraw.Flags().StringVar(&to, "to", "", "recipient address")
	withdraw.Flags().StringVar(&sigHex, "sig", "", "admin signature (hex)")
	_ = withdraw.MarkFlagRequired("to")
	_ = withdraw.MarkFlagRequired("sig")

	holds := &cobra.Command{
		Use:   "holds <character>",
		Short: "Report whether the villa holds a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("character", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				v, err := openVilla(a)
				if err != nil {
					return err
				}
				held, err := v.Holds(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]bool{"held": held}, "%t", held)
			})
		},
	}

	cmd.AddCommand(sign, withdraw, holds)
	return cmd
}
