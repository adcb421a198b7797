package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/ebfe/scard"

	"github.com/gregLibert/pki-token/pkg/iso7816"
	"github.com/gregLibert/pki-token/pkg/token"
)

func main() {
	var (
		emulate    = flag.Bool("emulate", false, "Drive an in-process token instead of a PC/SC reader")
		readerIdx  = flag.Int("reader", 0, "Index of the PC/SC reader to use")
		policyPath = flag.String("policy", "", "Path to a YAML token policy (emulated token only)")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// --- 1. Transport Setup ---
	var transport iso7816.Transmitter
	if *emulate {
		transport = setupEmulatedToken(*policyPath, logger)
	} else {
		ctx, card := connectToCard(*readerIdx)

		defer func() {
			if err := ctx.Release(); err != nil {
				log.Printf("Warning: Failed to release context: %v", err)
			}
		}()

		defer func() {
			if err := card.Disconnect(scard.LeaveCard); err != nil {
				log.Printf("Warning: Failed to disconnect card: %v", err)
			}
		}()

		transport = card
	}

	// --- 2. Logic Setup ---
	client := iso7816.NewClient(transport)

	// --- 3. Execution Flow ---
	if err := step1QueryCapabilities(client); err != nil {
		log.Fatalf("Step 1 failed: %v", err)
	}

	if err := step2CheckVerificationStatus(client); err != nil {
		log.Printf("Step 2 Warning: %v", err)
	}

	if err := step3FetchChallenge(client); err != nil {
		log.Printf("Step 3 Warning: %v", err)
	}

	fmt.Println("\n>> Demo Finished Successfully")
}

// setupEmulatedToken builds an in-process token so the demo flow can
// run without hardware.
func setupEmulatedToken(policyPath string, logger *slog.Logger) iso7816.Transmitter {
	policy := token.DefaultPolicy()
	if policyPath != "" {
		var err error
		policy, err = token.LoadPolicy(policyPath)
		if err != nil {
			log.Fatalf("Error loading policy: %s", err)
		}
	}

	tok, err := token.New(policy, logger)
	if err != nil {
		log.Fatalf("Error constructing token: %s", err)
	}
	tok.Select()

	fmt.Println(">> Using in-process token (no reader)")
	return tok
}

// connectToCard handles the PC/SC context establishment and reader connection.
func connectToCard(readerIdx int) (*scard.Context, *scard.Card) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		log.Fatalf("Error establishing context: %s", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		log.Fatal("No smart card reader found.")
	}
	if readerIdx < 0 || readerIdx >= len(readers) {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		log.Fatalf("Reader index %d out of range (found %d readers)", readerIdx, len(readers))
	}

	fmt.Printf(">> Using reader: %s\n", readers[readerIdx])

	card, err := ctx.Connect(readers[readerIdx], scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		if relErr := ctx.Release(); relErr != nil {
			log.Printf("Warning: Failed to release context during error handling: %v", relErr)
		}
		log.Fatalf("Error connecting to card: %s", err)
	}

	return ctx, card
}

// step1QueryCapabilities reads the 3-byte version/feature descriptor.
func step1QueryCapabilities(client *iso7816.Client) error {
	fmt.Println("\n=============================================")
	fmt.Println(" Step 1: GET DATA (capability descriptor)")
	fmt.Println("=============================================")

	cmd := iso7816.NewCommand(0x00, iso7816.INS_GET_DATA, 0x01, 0x01, nil, 3)
	trace, err := client.Send(cmd)
	if err != nil {
		return fmt.Errorf("transmission failed: %w", err)
	}
	if !trace.IsSuccess() {
		return fmt.Errorf("query failed with status: %s", trace.Last().Response.Status)
	}

	data := trace.Data()
	if len(data) != 3 {
		return fmt.Errorf("unexpected descriptor length %d", len(data))
	}

	features := token.Features(data[2])
	fmt.Printf("   API version:   %d.%d\n", data[0], data[1])
	fmt.Printf("   Feature mask:  %#02x\n", data[2])
	fmt.Printf("   Extended APDU: %v\n", features.Has(token.FeatureExtendedAPDU))
	fmt.Printf("   Secure random: %v\n", features.Has(token.FeatureSecureRandom))
	fmt.Printf("   Elliptic:      %v\n", features.Has(token.FeatureECC))
	fmt.Printf("   RSA-PSS:       %v\n", features.Has(token.FeatureRSAPSS))
	fmt.Printf("   RSA-4096:      %v\n", features.Has(token.FeatureRSA4096))
	return nil
}

// step2CheckVerificationStatus issues an empty VERIFY to learn whether
// a PIN is required and how many tries remain.
func step2CheckVerificationStatus(client *iso7816.Client) error {
	fmt.Println("\n=============================================")
	fmt.Println(" Step 2: VERIFY (status query)")
	fmt.Println("=============================================")

	cmd := iso7816.NewCommand(0x00, iso7816.INS_VERIFY, 0x00, 0x01, nil, 0)
	trace, err := client.Send(cmd)
	if err != nil {
		return fmt.Errorf("transmission failed: %w", err)
	}

	status := trace.Last().Response.Status
	if tries, ok := status.Counter(); ok {
		fmt.Printf("   PIN required, %d tries remaining\n", tries)
		return nil
	}
	if status.IsSuccess() {
		fmt.Println("   No verification required (no PIN set yet)")
		return nil
	}
	return fmt.Errorf("unexpected status: %s", status)
}

// step3FetchChallenge asks the token for 16 random bytes.
func step3FetchChallenge(client *iso7816.Client) error {
	fmt.Println("\n=============================================")
	fmt.Println(" Step 3: GET CHALLENGE (16 bytes)")
	fmt.Println("=============================================")

	cmd := iso7816.NewCommand(0x00, iso7816.INS_GET_CHALLENGE, 0x00, 0x00, nil, 16)
	trace, err := client.Send(cmd)
	if err != nil {
		return fmt.Errorf("transmission failed: %w", err)
	}
	if !trace.IsSuccess() {
		return fmt.Errorf("challenge refused with status: %s", trace.Last().Response.Status)
	}

	fmt.Printf("   Challenge: %X\n", trace.Data())
	return nil
}
