package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	attestdclient "attestd/api/clients/attestd"
	"attestd/internal/domain"
	"attestd/internal/infra/crypto"
	"attestd/pkg/statuslist"
)

var flagIn = &cli.StringFlag{
	Name:    "in",
	Aliases: []string{"i"},
	Usage:   "input JSON file, - for stdin",
	Value:   "-",
}

var flagStatusList = &cli.StringFlag{
	Name:  "status-list",
	Usage: "status list credential JSON used to resolve credentialStatus",
}

var flagServer = &cli.StringFlag{
	Name:    "server",
	Usage:   "attestd base URL",
	Value:   "http://localhost:8080",
	EnvVars: []string{"ATTESTD_URL"},
}

var flagAdminKey = &cli.StringFlag{
	Name:    "admin-key",
	Usage:   "admin API key for mutating calls",
	EnvVars: []string{"ATTESTD_ADMIN_KEY"},
}

var flagReason = &cli.StringFlag{
	Name:  "reason",
	Usage: "revocation reason",
	Value: string(domain.ReasonUnspecified),
}

var flagIndex = &cli.IntFlag{
	Name:     "index",
	Usage:    "status list index to check",
	Required: true,
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "attest",
		Usage: "offline tooling for attestd credentials and status lists",
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "generate an ed25519 authority signing key",
				Action: runKeygen,
			},
			{
				Name:   "canonicalize",
				Usage:  "print the canonical JSON form of a document and its sha256",
				Flags:  []cli.Flag{flagIn},
				Action: runCanonicalize,
			},
			{
				Name:  "credential",
				Usage: "work with verifiable credentials",
				Subcommands: []*cli.Command{
					{
						Name:   "inspect",
						Usage:  "summarize a credential and resolve its revocation bit",
						Flags:  []cli.Flag{flagIn, flagStatusList},
						Action: runCredentialInspect,
					},
				},
			},
			{
				Name:  "statuslist",
				Usage: "work with StatusList2021 credentials",
				Subcommands: []*cli.Command{
					{
						Name:   "check",
						Usage:  "report whether an index is set in a status list",
						Flags:  []cli.Flag{flagIn, flagIndex},
						Action: runStatusListCheck,
					},
				},
			},
			{
				Name:  "remote",
				Usage: "query or update a running attestd",
				Flags: []cli.Flag{flagServer, flagAdminKey},
				Subcommands: []*cli.Command{
					{
						Name:      "check",
						Usage:     "report revocation status for credential ids",
						ArgsUsage: "<credential-id>...",
						Action:    runRemoteCheck,
					},
					{
						Name:      "revoke",
						Usage:     "revoke a credential id",
						ArgsUsage: "<credential-id>",
						Flags:     []cli.Flag{flagReason},
						Action:    runRemoteRevoke,
					},
					{
						Name:      "chain",
						Usage:     "build the trust chain for an issuer",
						ArgsUsage: "<issuer-id>",
						Action:    runRemoteChain,
					},
				},
			},
		},
	}
}

func remoteClient(cCtx *cli.Context) *attestdclient.Client {
	return attestdclient.NewClient(cCtx.String(flagServer.Name),
		attestdclient.WithAdminKey(cCtx.String(flagAdminKey.Name)),
		attestdclient.WithActor("attest-cli"),
	)
}

func runRemoteCheck(cCtx *cli.Context) error {
	ids := cCtx.Args().Slice()
	if len(ids) == 0 {
		return errors.New("at least one credential id is required")
	}
	results, err := remoteClient(cCtx).CheckRevocations(cCtx.Context, ids)
	if err != nil {
		return err
	}
	return writeJSON(cCtx.App.Writer, results)
}

func runRemoteRevoke(cCtx *cli.Context) error {
	id := cCtx.Args().First()
	if id == "" {
		return errors.New("credential id is required")
	}
	entry, err := remoteClient(cCtx).Revoke(cCtx.Context, attestdclient.RevokeInput{
		CredentialID: id,
		Reason:       domain.RevocationReason(cCtx.String(flagReason.Name)),
	})
	if err != nil {
		return err
	}
	return writeJSON(cCtx.App.Writer, entry)
}

func runRemoteChain(cCtx *cli.Context) error {
	id := cCtx.Args().First()
	if id == "" {
		return errors.New("issuer id is required")
	}
	chain, err := remoteClient(cCtx).TrustChain(cCtx.Context, id, "")
	if err != nil {
		return err
	}
	return writeJSON(cCtx.App.Writer, chain)
}

func runKeygen(cCtx *cli.Context) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	out := map[string]string{
		"SIGNING_PRIVATE_KEY_SEED_HEX": hex.EncodeToString(priv.Seed()),
		"SIGNING_PRIVATE_KEY_BASE64":   base64.StdEncoding.EncodeToString(priv),
		"public_key_hex":               hex.EncodeToString(pub),
	}
	return writeJSON(cCtx.App.Writer, out)
}

func runCanonicalize(cCtx *cli.Context) error {
	raw, err := readInput(cCtx, cCtx.String(flagIn.Name))
	if err != nil {
		return err
	}
	canonical, err := crypto.CanonicalizeJSON(raw)
	if err != nil {
		return fmt.Errorf("canonicalize: %w", err)
	}
	fmt.Fprintln(cCtx.App.Writer, string(canonical))
	fmt.Fprintf(cCtx.App.Writer, "sha256:%s\n", crypto.SHA256Hex(canonical))
	return nil
}

type credentialSummary struct {
	ID             string   `json:"id"`
	Issuer         string   `json:"issuer"`
	Subject        string   `json:"subject,omitempty"`
	Types          []string `json:"types"`
	IssuanceDate   string   `json:"issuance_date"`
	ExpirationDate string   `json:"expiration_date,omitempty"`
	ProofType      string   `json:"proof_type,omitempty"`
	StatusList     string   `json:"status_list,omitempty"`
	StatusIndex    *int     `json:"status_index,omitempty"`
	Revoked        *bool    `json:"revoked,omitempty"`
}

func runCredentialInspect(cCtx *cli.Context) error {
	var cred domain.Credential
	if err := readJSON(cCtx, cCtx.String(flagIn.Name), &cred); err != nil {
		return err
	}
	summary := credentialSummary{
		ID:           cred.ID,
		Issuer:       cred.Issuer,
		Subject:      cred.SubjectID(),
		Types:        cred.Type,
		IssuanceDate: cred.IssuanceDate.UTC().Format(time.RFC3339),
	}
	if cred.ExpirationDate != nil {
		summary.ExpirationDate = cred.ExpirationDate.UTC().Format(time.RFC3339)
	}
	if cred.Proof != nil {
		summary.ProofType = cred.Proof.Type
	}
	if status := cred.CredentialStatus; status != nil {
		idx, err := strconv.Atoi(status.StatusListIndex)
		if err != nil {
			return fmt.Errorf("invalid statusListIndex %q", status.StatusListIndex)
		}
		summary.StatusList = status.StatusListCredential
		summary.StatusIndex = &idx
	}
	if path := cCtx.String(flagStatusList.Name); path != "" {
		if summary.StatusIndex == nil {
			return errors.New("credential has no credentialStatus to resolve")
		}
		var list domain.StatusListCredential
		if err := readJSON(cCtx, path, &list); err != nil {
			return err
		}
		if list.ID != "" && summary.StatusList != "" && list.ID != summary.StatusList {
			return fmt.Errorf("status list %s does not match credential status list %s", list.ID, summary.StatusList)
		}
		revoked, err := statusBit(list, *summary.StatusIndex)
		if err != nil {
			return err
		}
		summary.Revoked = &revoked
	}
	return writeJSON(cCtx.App.Writer, summary)
}

func runStatusListCheck(cCtx *cli.Context) error {
	var list domain.StatusListCredential
	if err := readJSON(cCtx, cCtx.String(flagIn.Name), &list); err != nil {
		return err
	}
	index := cCtx.Int(flagIndex.Name)
	set, err := statusBit(list, index)
	if err != nil {
		return err
	}
	return writeJSON(cCtx.App.Writer, map[string]any{
		"status_list": list.ID,
		"index":       index,
		"purpose":     list.CredentialSubject.StatusPurpose,
		"set":         set,
	})
}

func statusBit(list domain.StatusListCredential, index int) (bool, error) {
	bits, err := statuslist.Decode(list.CredentialSubject.EncodedList)
	if err != nil {
		return false, fmt.Errorf("decode encodedList: %w", err)
	}
	return bits.Get(index)
}

func readInput(cCtx *cli.Context, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" || path == "-" {
		reader := cCtx.App.Reader
		if reader == nil {
			reader = os.Stdin
		}
		return io.ReadAll(reader)
	}
	return os.ReadFile(path)
}

func readJSON(cCtx *cli.Context, path string, out any) error {
	raw, err := readInput(cCtx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
