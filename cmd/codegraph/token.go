// cmd/codegraph/token.go
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graphindex/core/internal/auth"
	"github.com/graphindex/core/internal/types"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage MCP access tokens",
}

var (
	tokenCreateScopes   []string
	tokenCreateAccess   []string
	tokenCreateExpires  int64
)

var tokenCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Generate a new token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenCreate,
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored token (hash, name, scopes, status)",
	RunE:  runTokenList,
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <hash-prefix>",
	Short: "Revoke a token by its hash prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenRevoke,
}

var tokenRotateCmd = &cobra.Command{
	Use:   "rotate <hash-prefix>",
	Short: "Revoke a token and issue a fresh one with the same grants",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenRotate,
}

func init() {
	tokenCreateCmd.Flags().StringSliceVar(&tokenCreateScopes, "scope", []string{"read"}, "Scopes to grant (read,write,admin)")
	tokenCreateCmd.Flags().StringSliceVar(&tokenCreateAccess, "access", []string{"private"}, "Instance access levels to grant (private,work,public)")
	tokenCreateCmd.Flags().Int64Var(&tokenCreateExpires, "expires-in", 0, "Expiry in seconds from now (0 = never expires)")
	tokenCmd.AddCommand(tokenCreateCmd)
	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenRevokeCmd)
	tokenCmd.AddCommand(tokenRotateCmd)
	rootCmd.AddCommand(tokenCmd)
}

func scopesOf(raw []string) []types.Scope {
	out := make([]types.Scope, 0, len(raw))
	for _, s := range raw {
		out = append(out, types.Scope(strings.TrimSpace(s)))
	}
	return out
}

func accessOf(raw []string) []types.InstanceAccess {
	out := make([]types.InstanceAccess, 0, len(raw))
	for _, a := range raw {
		out = append(out, types.InstanceAccess(strings.TrimSpace(a)))
	}
	return out
}

func newTokenServiceFromConfig() (*auth.TokenService, error) {
	cfg, err := loadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := auth.NewTokenStore(dataPath(cfg, "tokens.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	return auth.NewTokenService(store), nil
}

func runTokenCreate(cmd *cobra.Command, args []string) error {
	svc, err := newTokenServiceFromConfig()
	if err != nil {
		return err
	}

	params := auth.GenerateParams{
		Name:           args[0],
		Scopes:         scopesOf(tokenCreateScopes),
		InstanceAccess: accessOf(tokenCreateAccess),
	}
	if tokenCreateExpires > 0 {
		params.ExpiresInSeconds = &tokenCreateExpires
	}

	generated, err := svc.GenerateToken(params)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	printResult(generated, func() {
		fmt.Printf("Token created for %q:\n", generated.Metadata.Name)
		fmt.Printf("  %s\n", generated.RawToken)
		fmt.Println("This value is shown once and is not recoverable from storage.")
	})
	return nil
}

func runTokenList(cmd *cobra.Command, args []string) error {
	cfg, err := loadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	store, err := auth.NewTokenStore(dataPath(cfg, "tokens.json"))
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}

	tokens := store.All()
	printResult(tokens, func() {
		if len(tokens) == 0 {
			fmt.Println("No tokens stored.")
			return
		}
		for _, t := range tokens {
			status := "active"
			if t.Revoked {
				status = "revoked"
			}
			fmt.Printf("%s  %-20s  %s  scopes=%v\n", t.TokenHash[:12], t.Metadata.Name, status, t.Metadata.Scopes)
		}
	})
	return nil
}

func findByPrefix(svc *auth.TokenService, prefix string) (types.StoredToken, error) {
	matches := svc.FindTokenByHashPrefix(prefix)
	if len(matches) == 0 {
		return types.StoredToken{}, fmt.Errorf("no token matches prefix %q", prefix)
	}
	if len(matches) > 1 {
		return types.StoredToken{}, fmt.Errorf("prefix %q matches %d tokens, be more specific", prefix, len(matches))
	}
	return matches[0], nil
}

func runTokenRevoke(cmd *cobra.Command, args []string) error {
	svc, err := newTokenServiceFromConfig()
	if err != nil {
		return err
	}
	tok, err := findByPrefix(svc, args[0])
	if err != nil {
		return err
	}
	if err := svc.RevokeToken(tok.TokenHash); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	printResult(map[string]string{"revoked": tok.Metadata.Name}, func() {
		fmt.Printf("Revoked %q\n", tok.Metadata.Name)
	})
	return nil
}

func runTokenRotate(cmd *cobra.Command, args []string) error {
	svc, err := newTokenServiceFromConfig()
	if err != nil {
		return err
	}
	tok, err := findByPrefix(svc, args[0])
	if err != nil {
		return err
	}
	var expires *int64
	if tok.Metadata.ExpiresAt != nil {
		remaining := int64(tok.Metadata.ExpiresAt.Sub(tok.Metadata.CreatedAt).Seconds())
		expires = &remaining
	}
	generated, err := svc.RotateToken(tok.TokenHash, expires)
	if err != nil {
		return fmt.Errorf("failed to rotate token: %w", err)
	}
	printResult(generated, func() {
		fmt.Printf("Rotated %q:\n", generated.Metadata.Name)
		fmt.Printf("  %s\n", generated.RawToken)
	})
	return nil
}
