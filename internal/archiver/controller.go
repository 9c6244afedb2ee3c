package archiver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openfolio/archivesync/internal/concept"
	"github.com/openfolio/archivesync/internal/database"
	"github.com/openfolio/archivesync/internal/domain"
	"github.com/openfolio/archivesync/internal/logger"
	"github.com/openfolio/archivesync/internal/metadata"
	"github.com/openfolio/archivesync/internal/metrics"
	"github.com/openfolio/archivesync/internal/phaidra"
	"github.com/openfolio/archivesync/internal/schema"
)

// ContainerClient is the slice of the archive client the controller needs.
// Member pushes run asynchronously in the worker, not here.
type ContainerClient interface {
	CreateContainer(ctx context.Context, doc metadata.Document) (*phaidra.Result, error)
	UpdateContainer(ctx context.Context, pid string, doc metadata.Document) error
	ObjectURI(pid string) string
}

// Dispatcher schedules member archival jobs.
type Dispatcher interface {
	Enqueue(ctx context.Context, items []domain.Media) (int, error)
}

// ArchiveResult describes the synchronous outcome of a push or update.
// Member pushes are asynchronous and therefore not part of the result.
type ArchiveResult struct {
	PID           string    `json:"pid"`
	URI           string    `json:"uri"`
	ArchiveDate   time.Time `json:"archive_date"`
	EnqueuedMedia int       `json:"enqueued_media"`
}

// Controller is the unit-of-work boundary for one archival operation over
// an entry and a set of its media items.
type Controller struct {
	entries    *database.EntryRepository
	media      *database.MediaRepository
	lookup     concept.Lookup
	archive    ContainerClient
	dispatcher Dispatcher
	tracker    metrics.Tracker
	logger     logger.Logger
}

// NewController creates a controller.
func NewController(
	entries *database.EntryRepository,
	media *database.MediaRepository,
	lookup concept.Lookup,
	archive ContainerClient,
	dispatcher Dispatcher,
	tracker metrics.Tracker,
	log logger.Logger,
) *Controller {
	return &Controller{
		entries:    entries,
		media:      media,
		lookup:     lookup,
		archive:    archive,
		dispatcher: dispatcher,
		tracker:    tracker,
		logger:     log,
	}
}

// preparation carries everything one archival attempt needs: the resolved
// entry and media set, the profile's translator, and the already-translated
// document.
type preparation struct {
	entry      *domain.Entry
	mediaItems []domain.Media
	profile    metadata.Profile
	translator *metadata.Translator
	doc        metadata.Document
}

// Validate resolves ownership, builds the translator/schema pair for the
// entry's profile, and runs metadata plus media validation. All field
// errors are aggregated into one *domain.ValidationError before returning.
func (c *Controller) Validate(ctx context.Context, userID, entryID string, mediaIDs []string) error {
	_, err := c.prepare(ctx, userID, entryID, mediaIDs)
	return err
}

// PushToArchive validates, pushes the container, durably records the
// assigned PID, and only then enqueues member pushes. For an entry that
// already has an archive id the container push is an update, never a second
// create.
func (c *Controller) PushToArchive(ctx context.Context, userID, entryID string, mediaIDs []string) (*ArchiveResult, error) {
	prep, err := c.prepare(ctx, userID, entryID, mediaIDs)
	if err != nil {
		return nil, c.trackRejected(ctx, err)
	}
	return c.pushContainer(ctx, prep)
}

// UpdateArchive validates and updates the existing container. It fails when
// the entry has never been archived.
func (c *Controller) UpdateArchive(ctx context.Context, userID, entryID string, mediaIDs []string) (*ArchiveResult, error) {
	prep, err := c.prepare(ctx, userID, entryID, mediaIDs)
	if err != nil {
		return nil, c.trackRejected(ctx, err)
	}
	if !prep.entry.Archived() {
		return nil, domain.ErrContainerNotArchived
	}
	return c.pushContainer(ctx, prep)
}

// MaybeScheduleUpdate is the explicit lifecycle hook the CRUD layer calls
// after committing a change. It schedules a container update and member
// re-archival only when the entry is archived and actually diverged.
func (c *Controller) MaybeScheduleUpdate(ctx context.Context, reconciler *Reconciler, entryID string) error {
	entry, err := c.entries.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if !entry.Archived() {
		return nil
	}

	changed, err := reconciler.HasChanged(ctx, entry, 0, 0)
	if err != nil {
		return fmt.Errorf("reconcile entry %s: %w", entryID, err)
	}
	if changed == nil || !*changed {
		return nil
	}

	prep, err := c.prepareSystem(ctx, entry, nil)
	if err != nil {
		return c.trackRejected(ctx, err)
	}
	_, err = c.pushContainer(ctx, prep)
	return err
}

// trackRejected counts a validation rejection on the push paths. Dry-run
// validation must not move the rejection metric.
func (c *Controller) trackRejected(ctx context.Context, err error) error {
	if IsValidation(err) {
		_ = c.tracker.IncrementRejected(ctx, metrics.KindContainer)
	}
	return err
}

// prepare loads and validates everything for one attempt on behalf of a
// user. Ownership is checked before any translation or network activity.
func (c *Controller) prepare(ctx context.Context, userID, entryID string, mediaIDs []string) (*preparation, error) {
	entry, err := c.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.OwnerID != userID {
		return nil, domain.ErrNotOwner
	}
	return c.prepareSystem(ctx, entry, mediaIDs)
}

// prepareSystem is prepare without the ownership check, for system-triggered
// updates.
func (c *Controller) prepareSystem(ctx context.Context, entry *domain.Entry, mediaIDs []string) (*preparation, error) {
	mediaItems, err := c.resolveMedia(ctx, entry, mediaIDs)
	if err != nil {
		return nil, err
	}

	profile := metadata.ProfileFor(entry)

	mapping, err := concept.BuildMapping(ctx, c.lookup, entry)
	if err != nil {
		return nil, fmt.Errorf("build concept mapping: %w", err)
	}

	// The schema build may extend the mapping with must-use roles, so it
	// runs before the translator picks up the mapping's codes.
	sch, err := schema.Build(ctx, profile, mapping)
	if err != nil {
		return nil, err
	}
	translator := metadata.NewTranslator(profile, mapping)

	doc, err := translator.TranslateData(entry, false)
	if err != nil {
		return nil, err
	}

	verr, err := translator.TranslateErrors(sch.Validate(doc))
	if err != nil {
		return nil, err
	}
	for i := range mediaItems {
		validateMedia(&mediaItems[i], verr)
	}
	if !verr.Empty() {
		return nil, verr
	}

	return &preparation{
		entry:      entry,
		mediaItems: mediaItems,
		profile:    profile,
		translator: translator,
		doc:        doc,
	}, nil
}

// resolveMedia loads the requested media items, or every media item of the
// entry when no explicit set was given, and enforces that each one belongs
// to the entry.
func (c *Controller) resolveMedia(ctx context.Context, entry *domain.Entry, mediaIDs []string) ([]domain.Media, error) {
	if len(mediaIDs) == 0 {
		return c.media.ListByEntry(ctx, entry.ID)
	}

	items := make([]domain.Media, 0, len(mediaIDs))
	for _, id := range mediaIDs {
		m, err := c.media.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("media %s: %w", id, err)
		}
		if m.EntryID != entry.ID {
			return nil, fmt.Errorf("media %s: %w", id, domain.ErrNotOwner)
		}
		items = append(items, *m)
	}
	return items, nil
}

// validateMedia collects file and license errors for one media item.
func validateMedia(m *domain.Media, verr *domain.ValidationError) {
	if m.MimeType == "" {
		verr.Add(fmt.Sprintf("media.%s.mime_type", m.ID), "mime type is required")
	}
	if m.License == nil || m.License.Source == "" {
		verr.Add(fmt.Sprintf("media.%s.license", m.ID), "license is required")
	}
}

// pushContainer performs the synchronous container call, records the result
// durably, and then enqueues member jobs. The dispatcher only runs after
// the archive id is persisted: container archival must be durably recorded
// before any member job may start.
func (c *Controller) pushContainer(ctx context.Context, prep *preparation) (*ArchiveResult, error) {
	entry := prep.entry
	now := time.Now().UTC()

	var result *ArchiveResult
	if entry.Archived() {
		if err := c.archive.UpdateContainer(ctx, *entry.ArchiveID, prep.doc); err != nil {
			_ = c.tracker.IncrementErrors(ctx, metrics.KindContainer)
			return nil, err
		}
		// The stored URI wins; without one it is rebuilt from the PID so
		// SetArchived never blanks the column.
		uri := c.archive.ObjectURI(*entry.ArchiveID)
		if entry.ArchiveURI != nil && *entry.ArchiveURI != "" {
			uri = *entry.ArchiveURI
		}
		result = &ArchiveResult{PID: *entry.ArchiveID, URI: uri, ArchiveDate: now}
	} else {
		created, err := c.archive.CreateContainer(ctx, prep.doc)
		if err != nil {
			_ = c.tracker.IncrementErrors(ctx, metrics.KindContainer)
			return nil, err
		}
		result = &ArchiveResult{PID: created.PID, URI: created.URI, ArchiveDate: now}
	}

	if err := c.entries.SetArchived(ctx, entry.ID, result.PID, result.URI, now); err != nil {
		return nil, fmt.Errorf("record container archival: %w", err)
	}
	entry.ArchiveID = &result.PID
	entry.ArchiveURI = &result.URI
	entry.ArchiveDate = &now

	enqueued, err := c.dispatcher.Enqueue(ctx, prep.mediaItems)
	if err != nil {
		return nil, fmt.Errorf("enqueue member jobs: %w", err)
	}
	result.EnqueuedMedia = enqueued

	_ = c.tracker.IncrementArchived(ctx, metrics.KindContainer)
	_ = c.tracker.AddRecentPush(ctx, metrics.RecentPush{
		PID:        result.PID,
		EntryID:    entry.ID,
		Kind:       metrics.KindContainer,
		ArchivedAt: now,
	})
	_ = c.tracker.UpdateLastPush(ctx)

	c.logger.Info("container archived",
		logger.String("entry_id", entry.ID),
		logger.String("pid", result.PID),
		logger.String("profile", string(prep.profile)),
		logger.Int("enqueued_media", enqueued),
	)
	return result, nil
}

// IsValidation reports whether an error is a user-facing validation error.
func IsValidation(err error) bool {
	var verr *domain.ValidationError
	return errors.As(err, &verr)
}
