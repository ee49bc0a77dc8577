package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"ledgerkernel/core"
	cliconfig "ledgerkernel/cmd/config"
	pkgconfig "ledgerkernel/pkg/config"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	rootCmd := &cobra.Command{Use: "ledgerctl"}
	rootCmd.PersistentFlags().String("env", "", "environment overlay to merge onto config/default.yaml")
	rootCmd.AddCommand(runManifestCmd())
	rootCmd.AddCommand(inspectStoreCmd())
	rootCmd.AddCommand(demoCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) pkgconfig.Config {
	env, _ := cmd.Flags().GetString("env")
	cliconfig.LoadConfig(env)
	return cliconfig.AppConfig
}

// manifestInstruction is the JSON-friendly wire shape for one
// core.Instruction: node ids and resource addresses travel as hex strings,
// amounts as decimal strings.
type manifestInstruction struct {
	Kind           string `json:"kind"`
	Resource       string `json:"resource,omitempty"`
	Amount         string `json:"amount,omitempty"`
	Package        string `json:"package,omitempty"`
	Blueprint      string `json:"blueprint,omitempty"`
	Function       string `json:"function,omitempty"`
	Module         int    `json:"module,omitempty"`
	Receiver       string `json:"receiver,omitempty"`
	IsGlobal       bool   `json:"is_global,omitempty"`
	BucketRef      uint32 `json:"bucket_ref,omitempty"`
	ProofRef       uint32 `json:"proof_ref,omitempty"`
	SourceProofRef uint32 `json:"source_proof_ref,omitempty"`
	Entity         int    `json:"entity,omitempty"`
	Code           string `json:"code,omitempty"`
}

var instructionKinds = map[string]core.InstructionKind{
	"take_from_worktop":       core.InstrTakeFromWorktop,
	"take_all_from_worktop":   core.InstrTakeAllFromWorktop,
	"return_to_worktop":       core.InstrReturnToWorktop,
	"assert_worktop_contains": core.InstrAssertWorktopContains,
	"call_method":             core.InstrCallMethod,
	"call_function":           core.InstrCallFunction,
	"lock_fee":                core.InstrLockFee,
	"lock_contingent_fee":     core.InstrLockContingentFee,
	"publish_package":         core.InstrPublishPackage,
	"mint_resource":           core.InstrMintResource,
	"burn_resource":           core.InstrBurnResource,
	"withdraw_from_vault":     core.InstrWithdrawFromVault,
	"deposit_to_vault":        core.InstrDepositToVault,
	"create_proof_from_bucket": core.InstrCreateProofFromBucket,
	"create_proof_from_vault": core.InstrCreateProofFromVault,
	"clone_proof":             core.InstrCloneProof,
	"drop_proof":              core.InstrDropProof,
	"pop_from_auth_zone":      core.InstrPopFromAuthZone,
	"push_to_auth_zone":       core.InstrPushToAuthZone,
	"drop_auth_zone":          core.InstrDropAuthZone,
	"allocate_address":        core.InstrAllocateAddress,
}

func parseNodeId(s string) (core.NodeId, error) {
	var id core.NodeId
	if s == "" {
		return id, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse node id %q: %w", s, err)
	}
	if len(raw) != core.NodeIdLen {
		return id, fmt.Errorf("node id %q has %d bytes, want %d", s, len(raw), core.NodeIdLen)
	}
	copy(id[:], raw)
	return id, nil
}

func toInstructions(in []manifestInstruction) ([]core.Instruction, error) {
	out := make([]core.Instruction, 0, len(in))
	for i, mi := range in {
		kind, ok := instructionKinds[mi.Kind]
		if !ok {
			return nil, fmt.Errorf("instruction %d: unknown kind %q", i, mi.Kind)
		}
		resource, err := parseNodeId(mi.Resource)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		pkg, err := parseNodeId(mi.Package)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		receiver, err := parseNodeId(mi.Receiver)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		amount := core.Amount{}
		if mi.Amount != "" {
			amount, err = core.NewAmount(mi.Amount)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: parse amount: %w", i, err)
			}
		}
		var code []byte
		if mi.Code != "" {
			code, err = hex.DecodeString(mi.Code)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: parse code: %w", i, err)
			}
		}
		out = append(out, core.Instruction{
			Kind:           kind,
			Resource:       resource,
			Amount:         amount,
			Package:        pkg,
			Blueprint:      mi.Blueprint,
			Function:       mi.Function,
			Module:         core.ModuleId(mi.Module),
			Receiver:       receiver,
			IsGlobal:       mi.IsGlobal,
			BucketRef:      mi.BucketRef,
			ProofRef:       mi.ProofRef,
			SourceProofRef: mi.SourceProofRef,
			Entity:         core.EntityType(mi.Entity),
			Code:           code,
		})
	}
	return out, nil
}

func runManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-manifest [file]",
		Short: "run a JSON transaction manifest against a fresh in-memory store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)

			limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
			if !limiter.Allow() {
				return fmt.Errorf("rate limit exceeded for run-manifest")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}
			var parsed []manifestInstruction
			if err := json.Unmarshal(data, &parsed); err != nil {
				return fmt.Errorf("parse manifest: %w", err)
			}
			instructions, err := toInstructions(parsed)
			if err != nil {
				return err
			}

			costUnitPrice, err := core.NewAmount(cfg.Fees.CostUnitPrice)
			if err != nil {
				return fmt.Errorf("parse cost_unit_price: %w", err)
			}
			p := core.NewTransactionProcessor(core.NewMemStore(), cfg.Fees.CostUnitLimit, costUnitPrice, cfg.Fees.TipPercentage, cfg.Fees.SystemLoan)
			rec := p.Run(instructions)
			return printReceipt(rec)
		},
	}
}

func inspectStoreCmd() *cobra.Command {
	var nodeHex string
	var moduleIdx int
	cmd := &cobra.Command{
		Use:   "inspect-store",
		Short: "list the substates stored under a node/module in a fresh store",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseNodeId(nodeHex)
			if err != nil {
				return err
			}
			store := core.NewMemStore()
			iter := store.List(id, core.ModuleId(moduleIdx))
			count := 0
			for iter.Next() {
				fmt.Printf("%x = %x\n", iter.Key(), iter.Value())
				count++
			}
			if err := iter.Error(); err != nil {
				return err
			}
			fmt.Printf("%d substates\n", count)
			return nil
		},
	}
	cmd.Flags().StringVar(&nodeHex, "node", "", "hex-encoded 30-byte node id")
	cmd.Flags().IntVar(&moduleIdx, "module", 0, "module id (0=Object,1=Metadata,2=Royalty,3=RoleAssignment,4=TypeInfo)")
	return cmd
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "run scenarios S1-S6 against an in-memory store and print the receipts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			costUnitPrice, err := core.NewAmount(cfg.Fees.CostUnitPrice)
			if err != nil {
				return err
			}
			scenarios := demoScenarios(cfg.Fees.CostUnitLimit, costUnitPrice, cfg.Fees.TipPercentage, cfg.Fees.SystemLoan)
			for _, s := range scenarios {
				fmt.Printf("--- %s ---\n", s.name)
				if err := printReceipt(s.receipt); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printReceipt(rec *core.Receipt) error {
	out := struct {
		Outcome   string `json:"outcome"`
		TotalPaid string `json:"total_paid"`
		CostUnits uint64 `json:"cost_units_consumed"`
		Error     string `json:"error,omitempty"`
	}{
		Outcome:   rec.Outcome.String(),
		TotalPaid: rec.FeeSummary.TotalPaid.String(),
		CostUnits: rec.FeeSummary.TotalCostUnitsConsumed,
	}
	if rec.Err != nil {
		out.Error = rec.Err.Error()
	}
	enc, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(enc))
	return nil
}
