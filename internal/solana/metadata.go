package solana

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"
)

// metaplexProgramID is the Token Metadata program that owns name and symbol
// records for SPL mints.
const metaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

// splMintAccountSize is the packed size of an SPL token mint account.
const splMintAccountSize = 82

// Metaplex metadata layout: key u8, update_authority 32 bytes, mint 32
// bytes, then borsh strings for name, symbol and uri. Fields beyond the
// documented maximums mean the account is not a metadata record.
const (
	metaplexKeyMetadataV1 = 4
	metaplexHeaderSize    = 65
	maxTokenNameLength    = 100
	maxTokenSymbolLength  = 20
)

// TokenMetadata is the on-chain identity of a mint.
type TokenMetadata struct {
	Mint     string
	Name     string
	Symbol   string
	Decimals int
	Supply   float64 // raw supply adjusted for decimals
}

// MetadataResolver reads token identity from the chain: decimals and supply
// from the SPL mint account, name and symbol from the Metaplex metadata PDA.
// Copy-trade entries arrive with a bare mint, so this is what names them.
type MetadataResolver struct {
	rpc    *HTTPClient
	logger *zap.Logger
}

// NewMetadataResolver creates a resolver backed by the given RPC client.
func NewMetadataResolver(rpc *HTTPClient, logger *zap.Logger) *MetadataResolver {
	return &MetadataResolver{rpc: rpc, logger: logger}
}

// Resolve fetches metadata for a mint. Returns nil when the mint account
// does not exist. Name and Symbol stay empty when the mint carries no
// Metaplex record.
func (r *MetadataResolver) Resolve(ctx context.Context, mint string) (*TokenMetadata, error) {
	if err := ValidateMintAddress(mint); err != nil {
		return nil, err
	}

	info, err := r.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get mint account: %w", err)
	}
	if info == nil {
		return nil, nil
	}

	meta := &TokenMetadata{Mint: mint}
	if err := parseMintData(info.Data, meta); err != nil {
		return nil, fmt.Errorf("parse mint account: %w", err)
	}

	// Name and symbol live in a separate account owned by the Metaplex
	// program. A missing or malformed record is not fatal.
	pda, err := deriveMetadataPDA(mint)
	if err != nil {
		r.logger.Debug("failed to derive metadata PDA",
			zap.String("mint", mint),
			zap.Error(err))
		return meta, nil
	}

	metaInfo, err := r.rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		r.logger.Debug("failed to fetch metadata account",
			zap.String("mint", mint),
			zap.Error(err))
		return meta, nil
	}
	if metaInfo == nil {
		return meta, nil
	}

	name, symbol, err := parseMetaplexData(metaInfo.Data)
	if err != nil {
		r.logger.Debug("failed to parse metadata account",
			zap.String("mint", mint),
			zap.Error(err))
		return meta, nil
	}

	meta.Name = name
	meta.Symbol = symbol
	return meta, nil
}

// parseMintData extracts supply and decimals from a base64-encoded SPL mint
// account. Layout: mint_authority COption<Pubkey> (36 bytes), supply u64 LE,
// decimals u8, is_initialized u8, freeze_authority COption<Pubkey>.
func parseMintData(data string, meta *TokenMetadata) error {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("decode account data: %w", err)
	}
	if len(raw) < splMintAccountSize {
		return fmt.Errorf("mint account: %d bytes, want %d", len(raw), splMintAccountSize)
	}

	rawSupply := binary.LittleEndian.Uint64(raw[36:44])
	decimals := int(raw[44])

	meta.Decimals = decimals
	meta.Supply = float64(rawSupply) / math.Pow10(decimals)
	return nil
}

// parseMetaplexData extracts name and symbol from a base64-encoded Metaplex
// metadata account.
func parseMetaplexData(data string) (name, symbol string, err error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", "", fmt.Errorf("decode account data: %w", err)
	}
	if len(raw) < metaplexHeaderSize+4 {
		return "", "", fmt.Errorf("metadata account: %d bytes, too short", len(raw))
	}
	if raw[0] != metaplexKeyMetadataV1 {
		return "", "", fmt.Errorf("metadata account: unexpected key %d", raw[0])
	}

	offset := metaplexHeaderSize
	name, offset, err = readBorshString(raw, offset, maxTokenNameLength)
	if err != nil {
		return "", "", fmt.Errorf("read name: %w", err)
	}
	symbol, _, err = readBorshString(raw, offset, maxTokenSymbolLength)
	if err != nil {
		return "", "", fmt.Errorf("read symbol: %w", err)
	}
	return name, symbol, nil
}

// readBorshString reads a u32-length-prefixed string, trimming the null
// padding Metaplex stores fixed-width fields with.
func readBorshString(raw []byte, offset, maxLen int) (string, int, error) {
	if offset+4 > len(raw) {
		return "", 0, fmt.Errorf("truncated at offset %d", offset)
	}
	n := int(binary.LittleEndian.Uint32(raw[offset : offset+4]))
	if n > maxLen {
		return "", 0, fmt.Errorf("length %d exceeds %d", n, maxLen)
	}
	offset += 4
	if offset+n > len(raw) {
		return "", 0, fmt.Errorf("truncated at offset %d", offset)
	}
	value := strings.TrimRight(string(raw[offset:offset+n]), "\x00")
	return value, offset + n, nil
}

// deriveMetadataPDA computes the Metaplex metadata account address for a
// mint: the program-derived address with seeds
// ["metadata", metaplex_program, mint].
func deriveMetadataPDA(mint string) (string, error) {
	programBytes, err := base58.Decode(metaplexProgramID)
	if err != nil {
		return "", fmt.Errorf("decode program id: %w", err)
	}
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint: %w", err)
	}

	seeds := [][]byte{[]byte("metadata"), programBytes, mintBytes}
	return derivePDA(seeds, programBytes)
}

// derivePDA finds the first bump seed whose hash lands off the ed25519
// curve, per the Solana program-derived address scheme.
func derivePDA(seeds [][]byte, programID []byte) (string, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(programID)
		h.Write([]byte("ProgramDerivedAddress"))
		candidate := h.Sum(nil)

		if !isOnCurve(candidate) {
			return base58.Encode(candidate), nil
		}
	}
	return "", fmt.Errorf("no valid bump seed found")
}
