package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yashvikram30/decentralized-canva-sub000/blobnet"
	"github.com/yashvikram30/decentralized-canva-sub000/policy"
	"github.com/yashvikram30/decentralized-canva-sub000/sealcrypt"
	"github.com/yashvikram30/decentralized-canva-sub000/version"
)

// SaveOptions carries per-save parameters. The zero value stores the
// document encrypted under a policy granting only the owner.
type SaveOptions struct {
	// Plaintext skips encryption. The stored record is flagged accordingly
	// and anyone resolving the blob id can read it.
	Plaintext bool

	// Grants seeds the document's access policy beyond the owner.
	Grants *policy.Grants

	// ExpiresAt sets a policy expiry. Nil means no expiry.
	ExpiresAt *time.Time
}

// Save encrypts and stores a new document owned by identity. On any failure
// after policy creation the policy is removed again, so no partial document
// is ever left behind.
func (v *Vault) Save(ctx context.Context, identity policy.Identity, name string, doc json.RawMessage, opts *SaveOptions) (*Record, error) {
	if !policy.ValidIdentity(identity) {
		return nil, fmt.Errorf("%w: identity", ErrNilParam)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name", ErrNilParam)
	}
	if len(doc) == 0 || !json.Valid(doc) {
		return nil, ErrInvalidDocument
	}
	if opts == nil {
		opts = &SaveOptions{}
	}

	docID, err := newDocID()
	if err != nil {
		return nil, err
	}

	pid, _, err := v.policies.Create(identity, opts.Grants)
	if err != nil {
		return nil, fmt.Errorf("vault: create policy: %w", err)
	}
	encrypted := !opts.Plaintext
	patch := &policy.Patch{Encrypted: &encrypted, ExpiresAt: opts.ExpiresAt}
	if _, err := v.policies.Update(pid, patch); err != nil {
		_ = v.policies.Delete(pid)
		return nil, fmt.Errorf("vault: configure policy: %w", err)
	}

	rollback := func() { _ = v.policies.Delete(pid) }

	raw, err := v.encodeDocument(ctx, identity, name, pid, doc, encrypted)
	if err != nil {
		rollback()
		return nil, err
	}

	res, err := v.blobs.Store(ctx, raw, v.putOptions(name))
	if err != nil {
		rollback()
		return nil, err
	}

	vnum, err := v.versions.Append(docID, &version.Record{
		Payload:     raw,
		ChangedBy:   identity,
		Description: "initial save",
	})
	if err != nil {
		rollback()
		return nil, fmt.Errorf("vault: record version: %w", err)
	}

	now := v.now()
	rec := &Record{
		ID:             docID,
		Name:           name,
		Encrypted:      encrypted,
		PolicyID:       pid,
		BlobID:         res.BlobID,
		CurrentVersion: vnum,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastModifiedBy: identity,
	}
	v.putRecord(rec)

	v.log.WithFields(logrus.Fields{
		"docId":     docID,
		"blobId":    res.BlobID,
		"encrypted": encrypted,
		"cost":      res.EstimatedCost,
	}).Info("vault: document saved")

	cp := *rec
	return &cp, nil
}

// Load retrieves and, when needed, decrypts a document for identity.
func (v *Vault) Load(ctx context.Context, identity policy.Identity, docID string) (json.RawMessage, *Record, error) {
	rec, err := v.Get(docID)
	if err != nil {
		return nil, nil, err
	}
	if err := v.checkAccess(rec, identity, policy.ActionRead); err != nil {
		return nil, nil, err
	}

	doc, err := v.loadPlaintext(ctx, identity, rec)
	if err != nil {
		return nil, nil, err
	}
	return doc, rec, nil
}

// LoadPublic retrieves the published plaintext of a document. No access
// check: publishing declassified it.
func (v *Vault) LoadPublic(ctx context.Context, docID string) (json.RawMessage, error) {
	rec, err := v.Get(docID)
	if err != nil {
		return nil, err
	}
	if rec.PublicBlobID == "" {
		return nil, ErrNotPublished
	}

	raw, err := v.blobs.Retrieve(ctx, rec.PublicBlobID)
	if err != nil {
		return nil, err
	}
	p, mode, err := blobnet.DecodePayload(raw, v.log)
	if err != nil {
		return nil, err
	}
	if mode != blobnet.ModePlaintext {
		return nil, fmt.Errorf("%w: published blob is not plaintext", blobnet.ErrBlobCorrupted)
	}
	return p.DocumentData, nil
}

// Update applies a shallow JSON merge to the document: top-level keys of
// patch replace those of the stored document. Updates to one document are
// serialized; the full merged document is re-encrypted and stored as a new
// blob, and the old blob stays retrievable for history.
func (v *Vault) Update(ctx context.Context, identity policy.Identity, docID string, patch json.RawMessage) (*Record, error) {
	lock := v.docLock(docID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := v.Get(docID)
	if err != nil {
		return nil, err
	}
	if err := v.checkAccess(rec, identity, policy.ActionWrite); err != nil {
		return nil, err
	}

	var patchObj map[string]json.RawMessage
	if err := json.Unmarshal(patch, &patchObj); err != nil || len(patchObj) == 0 {
		return nil, ErrInvalidDocument
	}

	current, err := v.loadPlaintext(ctx, identity, rec)
	if err != nil {
		return nil, err
	}
	var docObj map[string]json.RawMessage
	if err := json.Unmarshal(current, &docObj); err != nil {
		return nil, fmt.Errorf("%w: stored document is not an object", ErrInvalidDocument)
	}
	for k, val := range patchObj {
		docObj[k] = val
	}
	merged, err := json.Marshal(docObj)
	if err != nil {
		return nil, fmt.Errorf("vault: merge document: %w", err)
	}

	raw, err := v.encodeDocument(ctx, identity, rec.Name, rec.PolicyID, merged, rec.Encrypted)
	if err != nil {
		return nil, err
	}
	res, err := v.blobs.Store(ctx, raw, v.putOptions(rec.Name))
	if err != nil {
		return nil, err
	}
	vnum, err := v.versions.Append(docID, &version.Record{
		Payload:     raw,
		ChangedBy:   identity,
		Description: "update",
	})
	if err != nil {
		return nil, fmt.Errorf("vault: record version: %w", err)
	}

	rec.BlobID = res.BlobID
	rec.CurrentVersion = vnum
	rec.UpdatedAt = v.now()
	rec.LastModifiedBy = identity
	v.putRecord(rec)

	cp := *rec
	return &cp, nil
}

// Publish stores a plaintext copy of the document and records its public
// blob id. Publishing is a declassification and is restricted to policy
// admins; every publish is written to the audit log.
func (v *Vault) Publish(ctx context.Context, identity policy.Identity, docID string) (*Record, error) {
	lock := v.docLock(docID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := v.Get(docID)
	if err != nil {
		return nil, err
	}
	if err := v.checkAccess(rec, identity, policy.ActionAdmin); err != nil {
		return nil, err
	}

	doc, err := v.loadPlaintext(ctx, identity, rec)
	if err != nil {
		return nil, err
	}

	payload := &blobnet.BlobPayload{
		DocumentData: doc,
		Metadata: blobnet.BlobMetadata{
			Name:        rec.Name,
			Encrypted:   false,
			ContentType: "application/json",
			CreatedAt:   v.now(),
		},
	}
	raw, err := blobnet.EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	res, err := v.blobs.Store(ctx, raw, v.putOptions(rec.Name))
	if err != nil {
		return nil, err
	}

	rec.PublicBlobID = res.BlobID
	rec.UpdatedAt = v.now()
	rec.LastModifiedBy = identity
	v.putRecord(rec)

	v.log.WithFields(logrus.Fields{
		"docId":        docID,
		"identity":     identity,
		"publicBlobId": res.BlobID,
	}).Warn("vault: document published as plaintext")

	cp := *rec
	return &cp, nil
}

// Delete removes the document record and its access policy, and files
// advisory deletions for its blobs. Blob deletion is best-effort: the
// network keeps certified blobs until their paid epochs lapse.
func (v *Vault) Delete(ctx context.Context, identity policy.Identity, docID string) (bool, error) {
	lock := v.docLock(docID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := v.Get(docID)
	if err != nil {
		return false, err
	}
	if err := v.checkAccess(rec, identity, policy.ActionAdmin); err != nil {
		return false, err
	}

	if err := v.blobs.Delete(ctx, rec.BlobID); err != nil {
		v.log.WithError(err).WithField("blobId", rec.BlobID).Warn("vault: blob delete failed")
	}
	if rec.PublicBlobID != "" {
		if err := v.blobs.Delete(ctx, rec.PublicBlobID); err != nil {
			v.log.WithError(err).WithField("blobId", rec.PublicBlobID).Warn("vault: public blob delete failed")
		}
	}
	if err := v.policies.Delete(rec.PolicyID); err != nil {
		v.log.WithError(err).WithField("policyId", rec.PolicyID).Warn("vault: policy delete failed")
	}

	v.dropRecord(docID)
	v.log.WithFields(logrus.Fields{"docId": docID, "identity": identity}).Info("vault: document deleted")
	return true, nil
}

/// Rollback restores a previous version as a NEW version: the target's stored
// payload becomes a fresh blob and the history keeps growing forward.
func (v *Vault) Rollback(ctx context.Context, identity policy.Identity, docID string, target uint64) (*Record, error) {
	lock := v.docLock(docID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := v.Get(docID)
	if err != nil {
		return nil, err
	}
	if err := v.checkAccess(rec, identity, policy.ActionWrite); err != nil {
		return nil, err
	}

	vrec, err := v.versions.Rollback(docID, target, identity)
	if err != nil {
		return nil, err
	}
	res, err := v.blobs.Store(ctx, vrec.Payload, v.putOptions(rec.Name))
	if err != nil {
		return nil, err
	}

	rec.BlobID = res.BlobID
	rec.CurrentVersion = vrec.Version
	rec.UpdatedAt = v.now()
	rec.LastModifiedBy = identity
	v.putRecord(rec)

	cp := *rec
	return &cp, nil
}

// Grant adds grantee to the document policy's permission sets. Admin only.
func (v *Vault) Grant(ctx context.Context, identity policy.Identity, docID string, grantee policy.Identity, actions ...policy.Action) error {
	rec, err := v.Get(docID)
	if err != nil {
		return err
	}
	if err := v.checkAccess(rec, identity, policy.ActionAdmin); err != nil {
		return err
	}
	if _, err := v.policies.Grant(rec.PolicyID, grantee, actions...); err != nil {
		return fmt.Errorf("vault: grant: %w", err)
	}
	return nil
}

// Revoke removes grantee from all of the document policy's permission sets.
// Admin only; the owner cannot be revoked.
func (v *Vault) Revoke(ctx context.Context, identity policy.Identity, docID string, grantee policy.Identity) error {
	rec, err := v.Get(docID)
	if err != nil {
		return err
	}
	if err := v.checkAccess(rec, identity, policy.ActionAdmin); err != nil {
		return err
	}
	if _, err := v.policies.Revoke(rec.PolicyID, grantee); err != nil {
		return err
	}
	return nil
}

// PruneHistory drops old versions of a document, keeping the newest keep
// records. Version numbering continues past pruned records.
func (v *Vault) PruneHistory(docID string, keep int) (int, error) {
	if _, err := v.Get(docID); err != nil {
		return 0, err
	}
	return v.versions.Prune(docID, keep)
}

// checkAccess maps a policy check onto the vault's error taxonomy. Expiry is
// reported distinctly; missing admin rights are reported as insufficient
// permission so callers can tell escalation from plain denial.
func (v *Vault) checkAccess(rec *Record, identity policy.Identity, action policy.Action) error {
	if !policy.ValidIdentity(identity) {
		return fmt.Errorf("%w: identity", ErrNilParam)
	}
	p, err := v.policies.Get(rec.PolicyID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	if p.Expired(v.now()) {
		return sealcrypt.ErrPolicyExpired
	}
	if !p.Allows(identity, action) {
		if action == policy.ActionAdmin {
			return ErrInsufficientPermission
		}
		return ErrAccessDenied
	}
	return nil
}

// encodeDocument builds the blob payload for a document body, compressing
// large bodies and encrypting unless the record is plaintext.
func (v *Vault) encodeDocument(ctx context.Context, identity policy.Identity, name string, pid policy.PolicyID, doc []byte, encrypted bool) ([]byte, error) {
	meta := blobnet.BlobMetadata{
		Name:        name,
		Encrypted:   encrypted,
		ContentType: "application/json",
		CreatedAt:   v.now(),
	}

	payload := &blobnet.BlobPayload{Metadata: meta}
	if encrypted {
		body := doc
		if v.compressThreshold > 0 && len(doc) >= v.compressThreshold {
			packed, err := blobnet.Compress(doc, blobnet.CompressXZ)
			if err != nil {
				return nil, fmt.Errorf("vault: compress document: %w", err)
			}
			body = packed
			payload.Metadata.Compression = blobnet.CompressXZ
		}
		env, err := v.enc.Encrypt(ctx, body, identity, pid)
		if err != nil {
			return nil, err
		}
		// Ciphertext bytes live in EncryptedData; the envelope is stored
		// without them and reassembled on load.
		envMeta := *env
		envMeta.Ciphertext = nil
		payload.EncryptedData = env.Ciphertext
		payload.Envelope = &envMeta
	} else {
		payload.DocumentData = doc
	}
	return blobnet.EncodePayload(payload)
}

// loadPlaintext retrieves rec's blob and returns the document body in the
// clear, decrypting and decompressing as the payload requires.
func (v *Vault) loadPlaintext(ctx context.Context, identity policy.Identity, rec *Record) (json.RawMessage, error) {
	raw, err := v.blobs.Retrieve(ctx, rec.BlobID)
	if err != nil {
		return nil, err
	}
	p, mode, err := blobnet.DecodePayload(raw, v.log)
	if err != nil {
		return nil, err
	}

	if mode == blobnet.ModePlaintext {
		return p.DocumentData, nil
	}

	env := *p.Envelope
	env.Ciphertext = p.EncryptedData
	body, err := v.enc.Decrypt(ctx, &env, identity)
	if err != nil {
		return nil, err
	}
	doc, err := blobnet.Decompress(body, p.Metadata.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", blobnet.ErrBlobCorrupted, err)
	}
	return doc, nil
}

// putOptions builds the standard blob write options for this vault.
func (v *Vault) putOptions(name string) *blobnet.PutOptions {
	return &blobnet.PutOptions{
		Epochs: v.epochs,
		Tags:   map[string]string{"name": name},
	}
}
