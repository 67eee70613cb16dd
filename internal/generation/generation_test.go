package generation

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"codeberg.org/vestilook/server/internal/assets"
	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/history"
	"codeberg.org/vestilook/server/internal/status"
	"codeberg.org/vestilook/server/internal/vton"
	"codeberg.org/vestilook/server/vestilook/generations"
	"codeberg.org/vestilook/server/vestilook/profiles"
	"github.com/disintegration/imaging"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeProfiles struct {
	rec        *profiles.Record
	cachePath  string
	cacheUntil time.Time
}

func (f *fakeProfiles) GetOrCreate(context.Context, string, int, time.Time) (*profiles.Record, error) {
	return f.rec, nil
}

func (f *fakeProfiles) SetGarmentCache(_ context.Context, _ string, path string, expiresAt time.Time) error {
	f.cachePath = path
	f.cacheUntil = expiresAt
	return nil
}

type fakeJobs struct {
	created []generations.NewJob
	err     error
	job     *vton.Job
}

func (f *fakeJobs) CreateWithQuota(_ context.Context, nj generations.NewJob) (*vton.Job, vton.Quota, error) {
	if f.err != nil {
		return nil, vton.Quota{}, f.err
	}

	f.created = append(f.created, nj)
	exp := nj.ExpiresAt

	return &vton.Job{
			ID:             nj.ID,
			UserID:         nj.UserID,
			Status:         vton.StatusQueued,
			PersonaPath:    nj.PersonaPath,
			GarmentPath:    nj.GarmentPath,
			CreatedAt:      now,
			ExpiresAt:      &exp,
			ETASeconds:     nj.ETASeconds,
			RetainForHours: nj.RetainForHours,
		},
		vton.NewQuota(5, 3, nil), nil
}

func (f *fakeJobs) Get(_ context.Context, id, userID string) (*vton.Job, error) {
	if f.job == nil || f.job.ID != id || f.job.UserID != userID {
		return nil, generations.ErrNotFound
	}

	return f.job, nil
}

func (f *fakeJobs) List(context.Context, string, history.Filters) (history.Page, error) {
	return history.Page{}, nil
}

func (f *fakeJobs) Rate(_ context.Context, id, userID string, rating int) (*vton.Job, error) {
	j, err := f.Get(context.Background(), id, userID)
	if err != nil {
		return nil, err
	}

	j.Rating = &rating

	return j, nil
}

type fakeObjects struct {
	puts    []string
	copies  []string
	deletes []string
	copyErr error
}

func (f *fakeObjects) Put(_ context.Context, bucket, key string, _ []byte, _ string) error {
	f.puts = append(f.puts, bucket+"/"+key)
	return nil
}

func (f *fakeObjects) Copy(_ context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	if f.copyErr != nil {
		return f.copyErr
	}

	f.copies = append(f.copies, srcBucket+"/"+srcKey+" -> "+dstBucket+"/"+dstKey)
	return nil
}

func (f *fakeObjects) Delete(_ context.Context, bucket, key string) error {
	f.deletes = append(f.deletes, bucket+"/"+key)
	return nil
}

type fakeDispatcher struct {
	ids []string
	err error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, id string) error {
	f.ids = append(f.ids, id)
	return f.err
}

type requiredVersion string

func (v requiredVersion) RequiredVersion() string { return string(v) }

type fakeResolver struct {
	unavailable map[string]bool
}

func (f fakeResolver) Lookup(_ context.Context, bucket, path string, _ bool) assets.SignedURL {
	if f.unavailable[bucket] {
		return assets.SignedURL{}
	}

	return assets.SignedURL{URL: "https://cdn.test/" + bucket + "/" + path, ExpiresAt: now.Add(time.Minute), Available: true}
}

func compliantRecord() *profiles.Record {
	return &profiles.Record{
		UserID:            "u1",
		PersonaPath:       lo.ToPtr("u1/persona.jpg"),
		ConsentVersion:    lo.ToPtr("2024-06"),
		ConsentAcceptedAt: lo.ToPtr(now.Add(-time.Hour)),
		QuotaTotal:        5,
		QuotaUsed:         2,
	}
}

type harness struct {
	profiles   *fakeProfiles
	jobs       *fakeJobs
	objects    *fakeObjects
	dispatcher *fakeDispatcher
	resolver   fakeResolver
	submitted  int
}

func (h *harness) service() *Service {
	validator := garment.NewValidator(garment.Constraints{
		MinWidth:     1024,
		MinHeight:    1024,
		MaxBytes:     10 << 20,
		AllowedTypes: []string{"image/jpeg", "image/png", "image/webp"},
	}, garment.SniffContent())

	return New(h.profiles, h.jobs, h.objects, h.dispatcher, requiredVersion("2024-06"), validator, h.resolver,
		Config{
			Buckets:            status.Buckets{Persona: "personas", Garment: "garments", Result: "results"},
			ETASeconds:         45,
			DefaultRetainHours: 72,
			MaxRetainHours:     168,
			FreeQuota:          5,
			RenewalPeriod:      720 * time.Hour,
			SupportURL:         "https://vestilook.app/support",
		},
		WithClock(func() time.Time { return now }),
		WithSubmitObserver(func() { h.submitted++ }),
	)
}

func newHarness(rec *profiles.Record) *harness {
	return &harness{
		profiles:   &fakeProfiles{rec: rec},
		jobs:       &fakeJobs{},
		objects:    &fakeObjects{},
		dispatcher: &fakeDispatcher{},
	}
}

func garmentFile(t *testing.T, w, h int) *garment.File {
	t.Helper()

	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 20, G: 40, B: 200, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))

	return &garment.File{Name: "shirt.jpg", ContentType: "image/jpeg", Data: buf.Bytes()}
}

func TestCreate_QueuesJob(t *testing.T) {
	h := newHarness(compliantRecord())
	svc := h.service()

	sub, err := svc.Create(context.Background(), CreateInput{
		UserID:         "u1",
		ConsentVersion: "2024-06",
		Garment:        garmentFile(t, 1024, 1536),
	})
	require.NoError(t, err)

	require.Len(t, h.jobs.created, 1)
	nj := h.jobs.created[0]

	assert.Equal(t, sub.ID, nj.ID)
	assert.Equal(t, "u1/"+nj.ID+".jpg", nj.GarmentPath)
	assert.Equal(t, "u1/snapshots/"+nj.ID+".jpg", nj.PersonaPath)
	assert.Equal(t, 72, nj.RetainForHours)
	assert.Equal(t, 45, nj.ETASeconds)
	assert.Equal(t, now.Add(72*time.Hour), nj.ExpiresAt)

	assert.Equal(t, []string{"garments/" + nj.GarmentPath}, h.objects.puts)
	assert.Equal(t, []string{"personas/u1/persona.jpg -> personas/" + nj.PersonaPath}, h.objects.copies)
	assert.Equal(t, []string{nj.ID}, h.dispatcher.ids)
	assert.Equal(t, nj.GarmentPath, h.profiles.cachePath)
	assert.Equal(t, nj.ExpiresAt, h.profiles.cacheUntil)
	assert.Equal(t, 1, h.submitted)

	assert.Equal(t, vton.StatusQueued, sub.Status)
	assert.Equal(t, 2, sub.Quota.Remaining)
}

func TestCreate_CustomRetention(t *testing.T) {
	h := newHarness(compliantRecord())

	_, err := h.service().Create(context.Background(), CreateInput{
		UserID:         "u1",
		ConsentVersion: "2024-06",
		RetainForHours: 24,
		Garment:        garmentFile(t, 1024, 1024),
	})
	require.NoError(t, err)

	assert.Equal(t, 24, h.jobs.created[0].RetainForHours)
	assert.Equal(t, now.Add(24*time.Hour), h.jobs.created[0].ExpiresAt)
}

func TestCreate_Rejections(t *testing.T) {
	outdated := compliantRecord()
	outdated.ConsentVersion = lo.ToPtr("2023-01")

	noPersona := compliantRecord()
	noPersona.PersonaPath = nil

	exhausted := compliantRecord()
	exhausted.QuotaUsed = 5

	tests := []struct {
		name    string
		rec     *profiles.Record
		version string
		retain  int
		width   int
		want    error
	}{
		{"outdated version", compliantRecord(), "2023-01", 0, 1024, ErrConsentOutdated},
		{"consent not accepted", outdated, "2024-06", 0, 1024, ErrConsentRequired},
		{"no persona", noPersona, "2024-06", 0, 1024, ErrPersonaMissing},
		{"retention too long", compliantRecord(), "2024-06", 500, 1024, ErrInvalidRetention},
		{"negative retention", compliantRecord(), "2024-06", -1, 1024, ErrInvalidRetention},
		{"quota exhausted", exhausted, "2024-06", 0, 1024, generations.ErrQuotaExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.rec)

			_, err := h.service().Create(context.Background(), CreateInput{
				UserID:         "u1",
				ConsentVersion: tt.version,
				RetainForHours: tt.retain,
				Garment:        garmentFile(t, tt.width, 1024),
			})

			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, h.jobs.created)
			assert.Empty(t, h.objects.puts)
			assert.Empty(t, h.dispatcher.ids)
		})
	}
}

func TestCreate_ConsentCheckedBeforePersona(t *testing.T) {
	rec := compliantRecord()
	rec.ConsentVersion = nil
	rec.PersonaPath = nil

	h := newHarness(rec)

	_, err := h.service().Create(context.Background(), CreateInput{
		UserID:         "u1",
		ConsentVersion: "2024-06",
		Garment:        garmentFile(t, 1024, 1024),
	})
	assert.ErrorIs(t, err, ErrConsentRequired)
}

func TestCreate_GarmentValidation(t *testing.T) {
	h := newHarness(compliantRecord())

	_, err := h.service().Create(context.Background(), CreateInput{
		UserID:         "u1",
		ConsentVersion: "2024-06",
		Garment:        garmentFile(t, 1200, 800),
	})

	code, ok := garment.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, garment.CodeBelowMinResolution, code)
	assert.Empty(t, h.objects.puts)
}

func TestCreate_QuotaRaceCleansUp(t *testing.T) {
	h := newHarness(compliantRecord())
	h.jobs.err = generations.ErrQuotaExhausted

	_, err := h.service().Create(context.Background(), CreateInput{
		UserID:         "u1",
		ConsentVersion: "2024-06",
		Garment:        garmentFile(t, 1024, 1024),
	})

	assert.ErrorIs(t, err, generations.ErrQuotaExhausted)
	assert.Len(t, h.objects.deletes, 2)
	assert.Empty(t, h.dispatcher.ids)
	assert.Zero(t, h.submitted)
}

func TestCreate_SnapshotFailureRemovesGarment(t *testing.T) {
	h := newHarness(compliantRecord())
	h.objects.copyErr = errors.New("copy failed")

	_, err := h.service().Create(context.Background(), CreateInput{
		UserID:         "u1",
		ConsentVersion: "2024-06",
		Garment:        garmentFile(t, 1024, 1024),
	})

	assert.ErrorContains(t, err, "copy failed")
	assert.Equal(t, h.objects.puts, h.objects.deletes)
	assert.Empty(t, h.jobs.created)
}

func TestCreate_DispatchFailureStillAccepted(t *testing.T) {
	h := newHarness(compliantRecord())
	h.dispatcher.err = errors.New("broker down")

	sub, err := h.service().Create(context.Background(), CreateInput{
		UserID:         "u1",
		ConsentVersion: "2024-06",
		Garment:        garmentFile(t, 1024, 1024),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
}

func TestView(t *testing.T) {
	completed := now.Add(-time.Minute)
	expires := now.Add(time.Hour)

	h := newHarness(compliantRecord())
	h.jobs.job = &vton.Job{
		ID:          "job-1",
		UserID:      "u1",
		Status:      vton.StatusSucceeded,
		PersonaPath: "u1/snapshots/job-1.jpg",
		GarmentPath: "u1/job-1.jpg",
		ResultPath:  lo.ToPtr("u1/job-1.png"),
		CreatedAt:   now.Add(-2 * time.Minute),
		CompletedAt: &completed,
		ExpiresAt:   &expires,
	}

	svc := h.service()

	v, err := svc.View(context.Background(), "job-1", "u1")
	require.NoError(t, err)

	assert.Equal(t, status.StateSucceeded, v.State)
	assert.True(t, v.Actions.CanDownload.Allowed)
	require.NotNil(t, v.Assets.Result)
	assert.Equal(t, "https://cdn.test/results/u1/job-1.png", v.Assets.Result.URL)

	h.resolver = fakeResolver{unavailable: map[string]bool{"results": true}}

	v, err = h.service().View(context.Background(), "job-1", "u1")
	require.NoError(t, err)
	assert.False(t, v.Actions.CanDownload.Allowed)
	assert.True(t, v.Assets.Persona.Available)

	_, err = svc.View(context.Background(), "job-1", "someone-else")
	assert.ErrorIs(t, err, generations.ErrNotFound)
}

func TestRefresher_ScopesToOwner(t *testing.T) {
	h := newHarness(compliantRecord())
	h.jobs.job = &vton.Job{ID: "job-1", UserID: "u1", Status: vton.StatusQueued, CreatedAt: now, ETASeconds: 45}

	svc := h.service()

	r, err := svc.Refresher(context.Background(), "u1", "job-1")
	require.NoError(t, err)
	defer r.Close()

	v, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, status.StateQueued, v.State)
	require.NotNil(t, v.Countdown)

	other, err := svc.Refresher(context.Background(), "u2", "job-1")
	require.NoError(t, err)
	defer other.Close()

	_, err = other.Refresh(context.Background())
	assert.ErrorIs(t, err, generations.ErrNotFound)
}

func TestRate_Range(t *testing.T) {
	h := newHarness(compliantRecord())
	h.jobs.job = &vton.Job{ID: "job-1", UserID: "u1", Status: vton.StatusSucceeded}

	svc := h.service()

	for _, r := range []int{0, 6, -1} {
		_, err := svc.Rate(context.Background(), "job-1", "u1", r)
		assert.ErrorIs(t, err, ErrInvalidRating)
	}

	j, err := svc.Rate(context.Background(), "job-1", "u1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, *j.Rating)
}
