package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"mempool-sniper/internal/app"
)

var (
	decodeTx       string
	decodeCalldata string
	decodeValue    string
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Classify a single transaction or raw calldata",
	RunE: func(cmd *cobra.Command, args []string) error {
		if decodeTx == "" && decodeCalldata == "" && decodeValue == "" {
			return errors.New("one of --tx, --calldata or --value must be provided")
		}
		if decodeTx != "" && (decodeCalldata != "" || decodeValue != "") {
			return errors.New("--tx cannot be combined with --calldata or --value")
		}

		opts := app.DecodeOptions{
			TxHash:   decodeTx,
			Calldata: decodeCalldata,
			ValueETH: decodeValue,
		}
		return getApp().Decode(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	decodeCmd.Flags().StringVar(&decodeTx, "tx", "", "Transaction hash to fetch over RPC")
	decodeCmd.Flags().StringVar(&decodeCalldata, "calldata", "", "Hex calldata to classify offline")
	decodeCmd.Flags().StringVar(&decodeValue, "value", "", "Declared value in ETH for offline classification")
}
