package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orange-mining/ora-miner/internal/algo"
	"github.com/orange-mining/ora-miner/internal/config"
	logpkg "github.com/orange-mining/ora-miner/internal/logger"
	minerpkg "github.com/orange-mining/ora-miner/pkg/miner"
	"github.com/orange-mining/ora-miner/pkg/submit"
	"github.com/orange-mining/ora-miner/pkg/types"
)

// fundedMinimum is the available balance (microalgos) below which a run is
// refused outright.
const fundedMinimum = 1_000_000

var (
	tpm         int
	fee         int64
	logFile     string
	stopOnError bool
	assumeYes   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ora-miner",
		Short: "ORA juicer: rate-limited Algorand transaction miner",
		Long: `A command line miner for the Orange (ORA) mining application.
It submits mine transactions at a fixed rate, crediting mined rewards to
the configured deposit address.`,
	}

	rootCmd.AddCommand(
		runCmd(),
		keygenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <network>",
		Short: "Start mining on testnet or mainnet",
		Long: `Start the mining loop against the selected network.

Credentials and node settings come from the environment (or a .env file):
MINER_MNEMONIC, DEPOSIT_ADDRESS or DEPOSIT_MNEMONIC, ALGOD_* and APP_*.

Example:
  ora-miner run testnet --tpm 60 --fee 2000`,
		Args: cobra.ExactArgs(1),
		Run:  runMiner,
	}

	cmd.Flags().IntVar(&tpm, "tpm", 1, "Transactions per minute")
	cmd.Flags().Int64Var(&fee, "fee", 2000, "Fee per transaction (microalgos)")
	cmd.Flags().StringVarP(&logFile, "log-file", "l", "", "Log file (default: stdout)")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "Treat submission failures as fatal instead of logging and continuing")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print the miner address derived from MINER_MNEMONIC",
		Run: func(cmd *cobra.Command, args []string) {
			address, err := config.MinerAddress()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Address: %s\n", address)
		},
	}
}

func runMiner(cmd *cobra.Command, args []string) {
	network, err := types.ParseNetwork(args[0])
	if err != nil {
		fatalf("%v", err)
	}
	if fee < 0 {
		fatalf("fee must be non-negative, got %d", fee)
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("%v", err)
	}
	node, err := cfg.Node(network)
	if err != nil {
		fatalf("%v", err)
	}

	logger := setupLogging()
	minerAddress := cfg.MinerAccount.Address.String()

	client, err := algo.NewClient(node, minerAddress, cfg.DepositAddress)
	if err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Printf("Network: %s", strings.ToUpper(string(network)))
	logger.Printf("Miner address: %s", minerAddress)
	logger.Printf("Deposit address: %s", cfg.DepositAddress)

	round, err := client.LastRound(ctx)
	if err != nil {
		fatalf("Node connection failed, please check your node settings: %v", err)
	}
	logger.Printf("Node connected successfully. Block %d", round)

	if err := submit.EnsureOptIns(ctx, client, cfg, logger); err != nil {
		fatalf("%v", err)
	}
	if err := preflight(ctx, client, minerAddress, logger); err != nil {
		fatalf("%v", err)
	}

	if !assumeYes && !confirm() {
		logger.Println("Aborted.")
		return
	}

	submitter, err := submit.NewMineSubmitter(client, cfg.MinerAccount, cfg.DepositAddress)
	if err != nil {
		fatalf("%v", err)
	}
	miner, err := minerpkg.New(client, submitter, logger, minerpkg.Options{
		Network:      network,
		TPM:          tpm,
		Fee:          uint64(fee),
		StopOnError:  stopOnError,
		BalanceFloor: cfg.BalanceFloor,
	})
	if err != nil {
		fatalf("%v", err)
	}

	if err := miner.Run(ctx); err != nil {
		logger.Printf("Error: %v", err)
		os.Exit(1)
	}
}

// preflight refuses to start an underfunded run and logs how long the
// configured rate and fee will last.
func preflight(ctx context.Context, client *algo.Client, minerAddress string, logger *logpkg.Logger) error {
	balance, err := client.AvailableBalance(ctx, minerAddress)
	if err != nil {
		return err
	}
	if balance <= fundedMinimum {
		return fmt.Errorf("miner has low balance (%s ALGO), please fund before mining", inAlgo(balance))
	}

	costPerMinute := uint64(tpm) * uint64(fee)
	logger.Printf("Miner will send %d transactions per minute with %s ALGO fee (%s ALGO cost per minute).",
		tpm, inAlgo(uint64(fee)), inAlgo(costPerMinute))
	logger.Printf("Miner will spend %s ALGO", inAlgo(balance))
	if costPerMinute > 0 {
		seconds := balance * 60 / costPerMinute
		hours := seconds / 3600
		minutes := (seconds % 3600) / 60
		logger.Printf("Miner will run for approximately %d %s and %d %s",
			hours, plural(hours, "hour"), minutes, plural(minutes, "minute"))
	}
	return nil
}

func confirm() bool {
	fmt.Print("Do you want to continue? [y/N]: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func setupLogging() *logpkg.Logger {
	if logFile == "" {
		return logpkg.New()
	}
	logger, err := logpkg.Open(logFile)
	if err != nil {
		fatalf("Failed to open log file: %v", err)
	}
	return logger
}

func inAlgo(microalgos uint64) string {
	return fmt.Sprintf("%.6f", float64(microalgos)/1e6)
}

func plural(n uint64, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
