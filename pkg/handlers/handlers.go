package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eggman-xyz/eggman-go/pkg/ledger"
	"github.com/eggman-xyz/eggman-go/pkg/payment"
	"github.com/eggman-xyz/eggman-go/pkg/registry"
	"github.com/eggman-xyz/eggman-go/pkg/storage"
)

// maxUploadBytes bounds the multipart form kept in memory before
// spilling to disk.
const maxUploadBytes = 64 << 20

// Handler wires the token ledger, the blob store and the optional chain
// registry into the HTTP surface.
type Handler struct {
	ledger    ledger.Ledger
	scheduler *ledger.ExpiryScheduler
	blobs     storage.BlobStore
	registry  registry.Registry
	tmpDir    string
}

// New creates the HTTP handler set. reg may be nil when no chain is
// configured; uploads then skip the on-chain ownership write.
func New(l ledger.Ledger, s *ledger.ExpiryScheduler, blobs storage.BlobStore, reg registry.Registry, tmpDir string) *Handler {
	return &Handler{
		ledger:    l,
		scheduler: s,
		blobs:     blobs,
		registry:  reg,
		tmpDir:    tmpDir,
	}
}

// Pay handles GET /pay. It runs behind the x402 middleware, so by the
// time it executes the payment has been verified and settled; it only
// re-checks that the proof header is present, then mints a one-time
// upload token.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(payment.HeaderPayment) == "" {
		respondError(w, http.StatusBadRequest, "missing payment proof")
		return
	}

	token, err := ledger.NewToken()
	if err != nil {
		log.Printf("pay: token generation failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	if err := h.ledger.Issue(r.Context(), token); err != nil {
		log.Printf("pay: ledger issue failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	h.scheduler.Schedule(token)

	respondJSON(w, http.StatusOK, map[string]string{
		"token":     token,
		"message":   "payment received, token valid for one upload",
		"expiresIn": "10 minutes",
	})
}

// Store handles POST /store: redeem exactly one token for exactly one
// file upload, then attempt durable storage.
//
// The local scratch write always happens before the remote call, so a
// storage-network outage degrades the response to 202 instead of losing
// the bytes.
func (h *Handler) Store(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		log.Printf("store: bad multipart body: %v", err)
		respondError(w, http.StatusInternalServerError, "storage request failed")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()
	if header.Size == 0 {
		respondError(w, http.StatusBadRequest, "missing file")
		return
	}

	token := r.FormValue("transactionString")
	if token == "" {
		respondError(w, http.StatusBadRequest, "missing token")
		return
	}

	wallet := r.FormValue("walletAddress")
	if wallet != "" && !common.IsHexAddress(wallet) {
		respondError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	if _, err := h.ledger.Redeem(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, ledger.ErrTokenNotFound):
			respondError(w, http.StatusUnauthorized, "invalid token")
		case errors.Is(err, ledger.ErrTokenUsed), errors.Is(err, ledger.ErrTokenExpired):
			// Prior redemption and timer expiry look identical to the caller.
			respondError(w, http.StatusUnauthorized, "token already used")
		default:
			log.Printf("store: redeem failed: %v", err)
			respondError(w, http.StatusInternalServerError, "storage request failed")
		}
		return
	}
	h.scheduler.Cancel(token)

	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("store: reading upload: %v", err)
		respondError(w, http.StatusInternalServerError, "storage request failed")
		return
	}

	// Durability backstop: the scratch write is unconditional and
	// precedes the remote call.
	tempName := uuid.New().String() + filepath.Ext(header.Filename)
	if err := os.MkdirAll(h.tmpDir, 0o755); err != nil {
		log.Printf("store: scratch dir: %v", err)
		respondError(w, http.StatusInternalServerError, "storage request failed")
		return
	}
	if err := os.WriteFile(filepath.Join(h.tmpDir, tempName), data, 0o644); err != nil {
		log.Printf("store: scratch write: %v", err)
		respondError(w, http.StatusInternalServerError, "storage request failed")
		return
	}

	if err := h.ledger.Attach(r.Context(), token, ledger.BlobInfo{
		FileName: tempName,
		Wallet:   wallet,
	}); err != nil {
		log.Printf("store: attach file name: %v", err)
	}

	result, err := h.blobs.Store(r.Context(), data)
	if err != nil {
		log.Printf("store: remote storage unavailable: %v", err)
		respondJSON(w, http.StatusAccepted, map[string]string{
			"tempFile": tempName,
			"message":  "file saved locally, remote storage pending",
			"error":    "remote storage unavailable",
		})
		return
	}

	if err := h.ledger.Attach(r.Context(), token, ledger.BlobInfo{
		BlobID:       result.BlobID,
		BlobObjectID: result.ObjectID,
	}); err != nil {
		log.Printf("store: attach blob ids: %v", err)
	}

	resp := map[string]string{
		"blobId":       result.BlobID,
		"blobObjectId": result.ObjectID,
		"tempFile":     tempName,
		"message":      "file stored",
	}

	// The registry write is best effort: the blob is already durable, so
	// a chain outage must not fail the upload.
	if wallet != "" && h.registry != nil {
		txHash, err := h.registry.AddBlob(r.Context(), result.BlobID, common.HexToAddress(wallet))
		if err != nil {
			log.Printf("store: registry write failed for blob %s: %v", result.BlobID, err)
		} else {
			resp["registryTx"] = txHash
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// AdminTransactions handles GET /admin/transactions: the full ledger
// dump with aggregate counts.
func (h *Handler) AdminTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.All(r.Context())
	if err != nil {
		log.Printf("admin: ledger dump failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	stats, err := h.ledger.Stats(r.Context())
	if err != nil {
		log.Printf("admin: ledger stats failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions":         records,
		"totalTransactions":    stats.Total,
		"usedTransactions":     stats.Used,
		"unusedTransactions":   stats.Unused,
		"redeemedTransactions": stats.Redeemed,
		"expiredTransactions":  stats.Expired,
	})
}

// BlobInfo handles GET /info/{blobId} and GET /get/{blobId}: resolve a
// blob identifier back to its originating upload.
func (h *Handler) BlobInfo(w http.ResponseWriter, r *http.Request) {
	blobID := chi.URLParam(r, "blobId")

	rec, err := h.ledger.FindByBlobID(r.Context(), blobID)
	if errors.Is(err, ledger.ErrTokenNotFound) {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"blobId":   blobID,
			"fileName": nil,
			"message":  "no upload found for this blob",
		})
		return
	}
	if err != nil {
		log.Printf("info: lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"blobId":   blobID,
		"fileName": rec.FileName,
		"message":  "upload found",
	})
}

// Blob handles GET /blob/{blobId}: stream the blob back from the
// storage network.
func (h *Handler) Blob(w http.ResponseWriter, r *http.Request) {
	blobID := chi.URLParam(r, "blobId")

	body, err := h.blobs.Read(r.Context(), blobID)
	if err != nil {
		log.Printf("blob: read failed: %v", err)
		respondError(w, http.StatusNotFound, "blob not available")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, body); err != nil {
		log.Printf("blob: stream interrupted: %v", err)
	}
}

// Images handles GET /images: list the locally cached scratch files.
func (h *Handler) Images(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.tmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			respondJSON(w, http.StatusOK, map[string]interface{}{"files": []string{}})
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	respondJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

// ImageFile handles GET /images/{name}: serve one scratch file.
func (h *Handler) ImageFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) {
		respondError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	path := filepath.Join(h.tmpDir, name)
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}
	http.ServeFile(w, r, path)
}

// RegistryBlobs handles GET /registry/{address}: read back the blob ids
// registered to a wallet on-chain.
func (h *Handler) RegistryBlobs(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		respondError(w, http.StatusServiceUnavailable, "registry not configured")
		return
	}

	addr := chi.URLParam(r, "address")
	if !common.IsHexAddress(addr) {
		respondError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	blobs, err := h.registry.UserBlobs(r.Context(), common.HexToAddress(addr))
	if err != nil {
		log.Printf("registry: read failed for %s: %v", addr, err)
		respondError(w, http.StatusBadGateway, "registry read failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"walletAddress": addr,
		"blobs":         blobs,
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
