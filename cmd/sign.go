package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mezonai/starledger/config"
	"github.com/mezonai/starledger/mempool"
	"github.com/mezonai/starledger/wallet"
)

var (
	signKey       string
	signKeyFile   string
	signEd25519   bool
	signMessage   string
	signAddress   string
	signTimestamp int64
	signNewKey    bool
)

// signCmd is a client side helper for the validation workflow: it signs either a
// raw message or the challenge built from --address and --timestamp.
var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a validation challenge with a local key",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if signNewKey {
			return printNewKey(cmd)
		}

		key := signKey
		if signKeyFile != "" {
			loaded, err := config.LoadKeyFile(signKeyFile)
			if err != nil {
				return err
			}
			key = loaded
		}
		if key == "" {
			return fmt.Errorf("one of --key, --key-file or --new is required")
		}

		var address, signature string
		if signEd25519 {
			priv, err := wallet.ParseEd25519Key(key)
			if err != nil {
				return err
			}
			address = wallet.Ed25519Address(priv)
			signature = wallet.SignEd25519(priv, challengeFor(address))
		} else {
			bk, err := wallet.ParseBitcoinKey(key)
			if err != nil {
				return err
			}
			if address, err = bk.Address(); err != nil {
				return err
			}
			if signature, err = wallet.SignBitcoinMessage(bk, challengeFor(address)); err != nil {
				return err
			}
		}

		fmt.Fprintln(out, "address:  ", address)
		fmt.Fprintln(out, "message:  ", challengeFor(address))
		fmt.Fprintln(out, "signature:", signature)
		return nil
	},
}

func init() {
	f := signCmd.Flags()
	f.StringVar(&signKey, "key", "", "Private key: WIF or hex for bitcoin, hex seed for ed25519")
	f.StringVar(&signKeyFile, "key-file", "", "File holding the private key")
	f.BoolVar(&signEd25519, "ed25519", false, "Use an ed25519 key instead of a bitcoin key")
	f.StringVarP(&signMessage, "message", "m", "", "Exact message to sign, as returned by requestValidation")
	f.StringVar(&signAddress, "address", "", "Address used to build the challenge when --message is empty")
	f.Int64Var(&signTimestamp, "timestamp", 0, "requestTimeStamp used to build the challenge when --message is empty")
	f.BoolVar(&signNewKey, "new", false, "Generate a new key and print it with its address")
	rootCmd.AddCommand(signCmd)
}

func challengeFor(keyAddress string) string {
	if signMessage != "" {
		return signMessage
	}
	address := signAddress
	if address == "" {
		address = keyAddress
	}
	return mempool.ChallengeMessage(address, signTimestamp)
}

func printNewKey(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	if signEd25519 {
		priv, address, err := wallet.NewEd25519Key()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "address:", address)
		fmt.Fprintln(out, "key:    ", hex.EncodeToString(priv.Seed()))
		return nil
	}
	bk, err := wallet.NewBitcoinKey()
	if err != nil {
		return err
	}
	address, err := bk.Address()
	if err != nil {
		return err
	}
	wif, err := bk.WIF()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "address:", address)
	fmt.Fprintln(out, "key:    ", wif)
	return nil
}
