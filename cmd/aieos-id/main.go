package main

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"aieos.dev/identity/config"
	"aieos.dev/identity/keys"
	"aieos.dev/identity/profile"
	"aieos.dev/identity/registry"
	"aieos.dev/identity/registry/grpcregistry"
)

const (
	protocolName    = "AIEOS"
	protocolVersion = "1.2"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, in io.Reader, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "register":
		return cmdRegister(args[1:], in, out, errOut)
	case "update":
		return cmdUpdate(args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "fingerprint":
		return cmdFingerprint(args[1:], out, errOut)
	case "show":
		return cmdShow(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "aieos-id: AIEOS identity CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  aieos-id key init --alias <alias> [--seed-hex <64hex>] [--dir <dir>] [--force]")
	fmt.Fprintln(w, "  aieos-id key export --alias <alias> [--dir <dir>]")
	fmt.Fprintln(w, "  aieos-id register [--alias <a>] [--name <n>] [--email <e>] [--endpoint <url>] [--registry <url>] [--config <file>] [--dir <dir>]")
	fmt.Fprintln(w, "  aieos-id update --alias <alias> [--registry <url>] [--config <file>] [--dir <dir>] [--set key=value ...]")
	fmt.Fprintln(w, "  aieos-id sign --profile <file> (--seed-hex <64hex> | --alias <alias> [--dir <dir>])")
	fmt.Fprintln(w, "  aieos-id verify <file>")
	fmt.Fprintln(w, "  aieos-id fingerprint <file>")
	fmt.Fprintln(w, "  aieos-id show --alias <alias> [--dir <dir>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - --seed-hex must be 32 bytes (64 hex chars) ed25519 seed")
	fmt.Fprintln(w, "  - identities are stored under ~/.aieos/<alias>.json (0600)")
	fmt.Fprintln(w, "  - register prompts for any identity field not given as a flag")
	fmt.Fprintln(w, "  - verify prints OK or INVALID and sets the exit code accordingly")
	fmt.Fprintln(w, "  - environment: AIEOS_REGISTRY_URL, AIEOS_TRANSPORT, AIEOS_KEY_DIR")
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: aieos-id key <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: init, export")
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var alias string
	var seedHex string
	var dir string
	var force bool
	fs.StringVar(&alias, "alias", "", "Identity alias")
	fs.StringVar(&seedHex, "seed-hex", "", "Use a fixed ed25519 seed instead of generating one")
	fs.StringVar(&dir, "dir", "", "Identity directory (default ~/.aieos)")
	fs.BoolVar(&force, "force", false, "Overwrite an existing identity file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if alias == "" {
		fmt.Fprintln(errOut, "missing --alias")
		return 2
	}
	if err := keys.CheckAlias(alias); err != nil {
		fmt.Fprintf(errOut, "invalid alias: %v\n", err)
		return 2
	}

	kp, err := makeKeypair(seedHex)
	if err != nil {
		fmt.Fprintf(errOut, "keypair: %v\n", err)
		return 1
	}

	path, err := identityPath(dir, alias)
	if err != nil {
		fmt.Fprintf(errOut, "identity dir: %v\n", err)
		return 1
	}
	id := keys.IdentityFile{Alias: alias, PublicKey: kp.PublicKey, PrivateKey: kp.PrivateKey}
	if err := keys.SaveIdentity(path, id, force); err != nil {
		fmt.Fprintf(errOut, "save identity: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "public_key: %s\n", kp.PublicKey)
	fmt.Fprintf(out, "file: %s\n", path)
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var alias string
	var dir string
	fs.StringVar(&alias, "alias", "", "Identity alias")
	fs.StringVar(&dir, "dir", "", "Identity directory (default ~/.aieos)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if alias == "" {
		fmt.Fprintln(errOut, "missing --alias")
		return 2
	}
	id, _, code := loadIdentity(dir, alias, errOut)
	if code != 0 {
		return code
	}
	fmt.Fprintln(out, id.PublicKey)
	return 0
}

func cmdRegister(args []string, in io.Reader, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var alias, name, email, endpoint string
	var registryURL, configPath, dir string
	var force bool
	fs.StringVar(&alias, "alias", "", "Identity alias")
	fs.StringVar(&name, "name", "", "Agent display name")
	fs.StringVar(&email, "email", "", "Contact email (optional)")
	fs.StringVar(&endpoint, "endpoint", "", "Agent API endpoint URL (optional)")
	fs.StringVar(&registryURL, "registry", "", "Registry base URL (overrides config/env)")
	fs.StringVar(&configPath, "config", "", "Config file path")
	fs.StringVar(&dir, "dir", "", "Identity directory (default ~/.aieos)")
	fs.BoolVar(&force, "force", false, "Overwrite an existing identity file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}
	if registryURL != "" {
		cfg.RegistryURL = registryURL
	}
	if dir == "" {
		dir = cfg.KeyDir
	}

	// Wizard: prompt only for what flags did not provide.
	reader := bufio.NewReader(in)
	if alias == "" {
		alias = prompt(reader, out, "alias")
	}
	if err := keys.CheckAlias(alias); err != nil {
		fmt.Fprintf(errOut, "invalid alias: %v\n", err)
		return 2
	}
	if name == "" {
		name = prompt(reader, out, "agent name")
	}
	if name == "" {
		fmt.Fprintln(errOut, "agent name is required")
		return 2
	}

	kp, err := keys.Generate()
	if err != nil {
		fmt.Fprintf(errOut, "keypair: %v\n", err)
		return 1
	}

	p := buildProfile(name, email, endpoint, kp.PublicKey)
	sig, err := profile.Sign(p, kp.PrivateKey)
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	p.SetSignature(sig)

	rec, err := submit(cfg, "", p)
	if err != nil {
		fmt.Fprintf(errOut, "register: %v\n", err)
		return 1
	}

	path, err := identityPath(dir, alias)
	if err != nil {
		fmt.Fprintf(errOut, "identity dir: %v\n", err)
		return 1
	}
	id := keys.IdentityFile{
		EntityID:   rec.EntityID,
		Alias:      alias,
		PublicKey:  kp.PublicKey,
		PrivateKey: kp.PrivateKey,
		Registered: true,
	}
	if err := keys.SaveIdentity(path, id, force); err != nil {
		fmt.Fprintf(errOut, "save identity: %v\n", err)
		return 1
	}

	fmt.Fprintf(out, "entity_id: %s\n", rec.EntityID)
	fmt.Fprintf(out, "public_key: %s\n", kp.PublicKey)
	fmt.Fprintf(out, "file: %s\n", path)
	return 0
}

func cmdUpdate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var alias string
	var registryURL, configPath, dir string
	var sets stringList
	fs.StringVar(&alias, "alias", "", "Identity alias")
	fs.StringVar(&registryURL, "registry", "", "Registry base URL (overrides config/env)")
	fs.StringVar(&configPath, "config", "", "Config file path")
	fs.StringVar(&dir, "dir", "", "Identity directory (default ~/.aieos)")
	fs.Var(&sets, "set", "Profile field as dotted.path=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if alias == "" {
		fmt.Fprintln(errOut, "missing --alias")
		return 2
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}
	if registryURL != "" {
		cfg.RegistryURL = registryURL
	}
	if dir == "" {
		dir = cfg.KeyDir
	}

	id, _, code := loadIdentity(dir, alias, errOut)
	if code != 0 {
		return code
	}
	if id.EntityID == "" {
		fmt.Fprintln(errOut, "identity is not registered (missing entity_id)")
		return 1
	}

	// Fetch the current record, apply updates, re-sign, resubmit.
	rec, _, err := lookup(cfg, id.EntityID)
	if err != nil {
		fmt.Fprintf(errOut, "lookup: %v\n", err)
		return 1
	}
	p := rec.Profile
	for _, kv := range sets {
		path, value, ok := strings.Cut(kv, "=")
		if !ok || path == "" {
			fmt.Fprintf(errOut, "invalid --set %q (want dotted.path=value)\n", kv)
			return 2
		}
		if err := setField(p, path, value); err != nil {
			fmt.Fprintf(errOut, "invalid --set %q: %v\n", kv, err)
			return 2
		}
	}

	sig, err := profile.Sign(p, id.PrivateKey)
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	p.SetSignature(sig)

	updated, err := submit(cfg, id.EntityID, p)
	if err != nil {
		fmt.Fprintf(errOut, "update: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "entity_id: %s\n", updated.EntityID)
	return 0
}

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var profilePath string
	var seedHex string
	var alias string
	var dir string
	fs.StringVar(&profilePath, "profile", "", "Profile JSON file")
	fs.StringVar(&seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars")
	fs.StringVar(&alias, "alias", "", "Use a stored identity's key")
	fs.StringVar(&dir, "dir", "", "Identity directory (default ~/.aieos)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if profilePath == "" {
		fmt.Fprintln(errOut, "missing --profile")
		return 2
	}
	if seedHex == "" && alias == "" {
		fmt.Fprintln(errOut, "missing signer: use --seed-hex or --alias")
		return 2
	}
	if seedHex != "" && alias != "" {
		fmt.Fprintln(errOut, "conflicting signer flags: --seed-hex cannot be combined with --alias")
		return 2
	}
	if alias != "" {
		id, _, code := loadIdentity(dir, alias, errOut)
		if code != 0 {
			return code
		}
		seedHex = id.PrivateKey
	}

	p, code := readProfile(profilePath, errOut)
	if code != 0 {
		return code
	}
	seed, err := keys.ParseSeedHex(seedHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid signer: %v\n", err)
		return 2
	}
	sig, err := profile.Sign(p, hex.EncodeToString(seed))
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	p.SetSignature(sig)

	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		fmt.Fprintf(errOut, "encode profile: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, string(b))
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: aieos-id verify <file>")
		return 2
	}
	p, code := readProfile(fs.Arg(0), errOut)
	if code != 0 {
		return code
	}
	if !profile.Verify(p) {
		fmt.Fprintln(out, "INVALID")
		return 1
	}
	fmt.Fprintln(out, "OK")
	return 0
}

func cmdFingerprint(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("fingerprint", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: aieos-id fingerprint <file>")
		return 2
	}
	p, code := readProfile(fs.Arg(0), errOut)
	if code != 0 {
		return code
	}
	id, err := profile.CID(p)
	if err != nil {
		fmt.Fprintf(errOut, "fingerprint: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, id)
	return 0
}

func cmdShow(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var alias string
	var dir string
	fs.StringVar(&alias, "alias", "", "Identity alias")
	fs.StringVar(&dir, "dir", "", "Identity directory (default ~/.aieos)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if alias == "" {
		fmt.Fprintln(errOut, "missing --alias")
		return 2
	}
	id, path, code := loadIdentity(dir, alias, errOut)
	if code != 0 {
		return code
	}
	fmt.Fprintf(out, "alias: %s\n", id.Alias)
	fmt.Fprintf(out, "entity_id: %s\n", id.EntityID)
	fmt.Fprintf(out, "public_key: %s\n", id.PublicKey)
	fmt.Fprintf(out, "registered: %v\n", id.Registered)
	fmt.Fprintf(out, "file: %s\n", path)
	return 0
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func prompt(r *bufio.Reader, out io.Writer, label string) string {
	fmt.Fprintf(out, "%s: ", label)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}

func makeKeypair(seedHex string) (keys.Keypair, error) {
	if seedHex == "" {
		return keys.Generate()
	}
	seed, err := keys.ParseSeedHex(seedHex)
	if err != nil {
		return keys.Keypair{}, err
	}
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	return keys.Keypair{
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: hex.EncodeToString(seed),
	}, nil
}

func buildProfile(name, email, endpoint, publicKeyHex string) profile.Profile {
	p := profile.Profile{
		"standard": map[string]any{
			"protocol": protocolName,
			"version":  protocolVersion,
		},
		"identity": map[string]any{
			"names": []any{name},
		},
		"metadata": map[string]any{
			"public_key": publicKeyHex,
			"signature":  "",
		},
	}
	if email != "" {
		p["email"] = email
	}
	if endpoint != "" {
		p["endpoints"] = map[string]any{"api": endpoint}
	}
	return p
}

// setField writes value at a dotted path, creating intermediate mappings.
func setField(p profile.Profile, path, value string) error {
	parts := strings.Split(path, ".")
	cur := map[string]any(p)
	for i, part := range parts {
		if part == "" {
			return fmt.Errorf("empty path segment")
		}
		if i == len(parts)-1 {
			cur[part] = value
			return nil
		}
		next, ok := cur[part].(map[string]any)
		if !ok {
			if _, exists := cur[part]; exists {
				return fmt.Errorf("%s is not a mapping", strings.Join(parts[:i+1], "."))
			}
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	return nil
}

func submit(cfg config.Config, entityID string, p profile.Profile) (*registry.Record, error) {
	switch cfg.Transport {
	case config.TransportGRPC:
		client, err := grpcregistry.Dial(cfg.RegistryURL, grpcregistry.DialOptions{Timeout: 10 * time.Second})
		if err != nil {
			return nil, err
		}
		defer client.Close()
		if entityID == "" {
			id, err := client.Register(p)
			if err != nil {
				return nil, err
			}
			return &registry.Record{EntityID: id, Registered: true, Profile: p}, nil
		}
		return client.Update(entityID, p)
	default:
		client := registry.NewClient(cfg.RegistryURL)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if entityID == "" {
			return client.Register(ctx, p)
		}
		return client.Update(ctx, entityID, p)
	}
}

func lookup(cfg config.Config, entityID string) (*registry.Record, bool, error) {
	switch cfg.Transport {
	case config.TransportGRPC:
		client, err := grpcregistry.Dial(cfg.RegistryURL, grpcregistry.DialOptions{Timeout: 10 * time.Second})
		if err != nil {
			return nil, false, err
		}
		defer client.Close()
		return client.Lookup(entityID)
	default:
		client := registry.NewClient(cfg.RegistryURL)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return client.Lookup(ctx, entityID)
	}
}

func identityPath(dir, alias string) (string, error) {
	if dir == "" {
		var err error
		dir, err = keys.DefaultDirectory()
		if err != nil {
			return "", err
		}
	}
	return keys.IdentityPath(dir, alias), nil
}

func loadIdentity(dir, alias string, errOut io.Writer) (keys.IdentityFile, string, int) {
	if err := keys.CheckAlias(alias); err != nil {
		fmt.Fprintf(errOut, "invalid alias: %v\n", err)
		return keys.IdentityFile{}, "", 2
	}
	path, err := identityPath(dir, alias)
	if err != nil {
		fmt.Fprintf(errOut, "identity dir: %v\n", err)
		return keys.IdentityFile{}, "", 1
	}
	id, err := keys.LoadIdentity(path)
	if err != nil {
		fmt.Fprintf(errOut, "load identity: %v\n", err)
		return keys.IdentityFile{}, "", 1
	}
	return id, path, 0
}

func readProfile(path string, errOut io.Writer) (profile.Profile, int) {
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "read profile: %v\n", err)
		return nil, 1
	}
	p, err := profile.Parse(b)
	if err != nil {
		fmt.Fprintf(errOut, "parse profile: %v\n", err)
		return nil, 1
	}
	return p, 0
}
