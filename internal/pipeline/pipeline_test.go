package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasfleet/dispatch-cli/internal/model"
)

type fakeClassifier struct {
	cls model.Classification
	err error
}

func (f *fakeClassifier) Classify(context.Context, model.Message) (model.Classification, error) {
	if f.err != nil {
		return model.ClassificationOther, f.err
	}
	return f.cls, nil
}

type fakeExtractor struct {
	draft *model.OrderDraft
	err   error
}

func (f *fakeExtractor) Extract(context.Context, model.Message) (*model.OrderDraft, error) {
	if f.err != nil {
		return nil, f.err
	}
	d := *f.draft
	return &d, nil
}

type fakeCleaner struct {
	prefix string
	err    error
}

func (f *fakeCleaner) Clean(_ context.Context, raw string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.prefix + raw, nil
}

type fakeResolver struct {
	coords map[string]*model.Coordinates
	err    error
	calls  []string
}

func (f *fakeResolver) Resolve(_ context.Context, raw string) (*model.Coordinates, error) {
	f.calls = append(f.calls, raw)
	if f.err != nil {
		return nil, f.err
	}
	return f.coords[raw], nil
}

type fakeSink struct {
	persisted []*model.OrderDraft
	err       error
}

func (f *fakeSink) Persist(_ context.Context, d *model.OrderDraft) error {
	if f.err != nil {
		return f.err
	}
	f.persisted = append(f.persisted, d)
	return nil
}

func orderMessage() model.Message {
	return model.Message{ID: "m-1", Subject: "order", Sender: "ops@example.com", Body: "cargo"}
}

func fullPipeline(t *testing.T, cls Classifier, ext Extractor, cln AddressCleaner, res Resolver, store, export Sink) *Pipeline {
	t.Helper()
	p, err := New(
		NewClassifyStage(cls),
		NewExtractStage(ext),
		NewCleanStage(cln),
		NewGeocodeStage(res),
		NewStorePersistStage(store),
		NewExportPersistStage(export),
	)
	require.NoError(t, err)
	return p
}

func TestExecute_OrderFlow(t *testing.T) {
	loading, err := model.NewCoordinates(57.14, 10.4)
	require.NoError(t, err)

	resolver := &fakeResolver{coords: map[string]*model.Coordinates{
		"clean:Asaa": loading,
	}}
	storeSink := &fakeSink{}
	exportSink := &fakeSink{}

	p := fullPipeline(t,
		&fakeClassifier{cls: model.ClassificationOrder},
		&fakeExtractor{draft: &model.OrderDraft{LoadingAddress: "Asaa", UnloadingAddress: "Hamburg"}},
		&fakeCleaner{prefix: "clean:"},
		resolver,
		storeSink, exportSink,
	)

	pc, err := p.Execute(context.Background(), NewContext(orderMessage()))
	require.NoError(t, err)

	assert.Equal(t, []string{
		StageClassify, StageExtract, StageClean, StageGeocode, StagePersistStore, StagePersistExport,
	}, pc.Completed())
	assert.Empty(t, pc.Failed())

	// Geocoding used the cleaned addresses but the draft keeps the raw ones.
	assert.Equal(t, []string{"clean:Asaa", "clean:Hamburg"}, resolver.calls)
	assert.Equal(t, "Asaa", pc.Draft.LoadingAddress)
	assert.Equal(t, loading, pc.Draft.LoadingCoordinates)
	assert.Nil(t, pc.Draft.UnloadingCoordinates)

	// Provenance was filled from the message.
	assert.Equal(t, "m-1", pc.Draft.MessageID)
	require.Len(t, storeSink.persisted, 1)
	require.Len(t, exportSink.persisted, 1)
}

func TestExecute_NonOrderSkipsRest(t *testing.T) {
	storeSink := &fakeSink{}
	p := fullPipeline(t,
		&fakeClassifier{cls: model.ClassificationInvoice},
		&fakeExtractor{draft: &model.OrderDraft{}},
		&fakeCleaner{},
		&fakeResolver{},
		storeSink, &fakeSink{},
	)

	pc, err := p.Execute(context.Background(), NewContext(orderMessage()))
	require.NoError(t, err)
	assert.Equal(t, []string{StageClassify}, pc.Completed())
	assert.Nil(t, pc.Draft)
	assert.Empty(t, storeSink.persisted)
}

func TestExecute_CriticalFailureAborts(t *testing.T) {
	storeSink := &fakeSink{}
	p := fullPipeline(t,
		&fakeClassifier{err: eris.New("api down")},
		&fakeExtractor{draft: &model.OrderDraft{}},
		&fakeCleaner{},
		&fakeResolver{},
		storeSink, &fakeSink{},
	)

	pc, err := p.Execute(context.Background(), NewContext(orderMessage()))
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, StageClassify, execErr.Stage)
	assert.Same(t, pc, execErr.Ctx)

	assert.True(t, pc.HasFailed(StageClassify))
	assert.Empty(t, pc.Completed())
	assert.Empty(t, storeSink.persisted)
}

func TestExecute_NonCriticalFailureContinues(t *testing.T) {
	resolver := &fakeResolver{}
	storeSink := &fakeSink{}
	p := fullPipeline(t,
		&fakeClassifier{cls: model.ClassificationOrder},
		&fakeExtractor{draft: &model.OrderDraft{LoadingAddress: "Asaa"}},
		&fakeCleaner{err: eris.New("cleaner down")},
		resolver,
		storeSink, &fakeSink{},
	)

	pc, err := p.Execute(context.Background(), NewContext(orderMessage()))
	require.NoError(t, err)

	assert.True(t, pc.HasFailed(StageClean))
	assert.Error(t, pc.Err(StageClean))

	// Geocoding fell back to the raw address and persistence still ran.
	assert.Equal(t, []string{"Asaa"}, resolver.calls)
	assert.True(t, pc.HasCompleted(StagePersistStore))
	require.Len(t, storeSink.persisted, 1)
}

func TestExecute_GeocodeLeavesPresetCoordinatesAlone(t *testing.T) {
	preset, err := model.NewCoordinates(42.7, 23.3)
	require.NoError(t, err)
	unloading, err := model.NewCoordinates(53.55, 9.99)
	require.NoError(t, err)

	// The resolver knows nothing about the loading address: if it were
	// consulted anyway, an all-tier miss would come back nil.
	resolver := &fakeResolver{coords: map[string]*model.Coordinates{"Hamburg": unloading}}
	p := fullPipeline(t,
		&fakeClassifier{cls: model.ClassificationOrder},
		&fakeExtractor{draft: &model.OrderDraft{
			LoadingAddress:     "Sofia",
			LoadingCoordinates: preset,
			UnloadingAddress:   "Hamburg",
		}},
		&fakeCleaner{},
		resolver,
		&fakeSink{}, &fakeSink{},
	)

	pc, err := p.Execute(context.Background(), NewContext(orderMessage()))
	require.NoError(t, err)

	assert.Equal(t, []string{"Hamburg"}, resolver.calls)
	assert.Equal(t, preset, pc.Draft.LoadingCoordinates)
	assert.Equal(t, unloading, pc.Draft.UnloadingCoordinates)
}

func TestExecute_GeocodeSkippedWhenCoordinatesComplete(t *testing.T) {
	loading, err := model.NewCoordinates(42.7, 23.3)
	require.NoError(t, err)
	unloading, err := model.NewCoordinates(53.55, 9.99)
	require.NoError(t, err)

	resolver := &fakeResolver{}
	p := fullPipeline(t,
		&fakeClassifier{cls: model.ClassificationOrder},
		&fakeExtractor{draft: &model.OrderDraft{
			LoadingAddress:       "Sofia",
			LoadingCoordinates:   loading,
			UnloadingAddress:     "Hamburg",
			UnloadingCoordinates: unloading,
		}},
		&fakeCleaner{},
		resolver,
		&fakeSink{}, &fakeSink{},
	)

	pc, err := p.Execute(context.Background(), NewContext(orderMessage()))
	require.NoError(t, err)

	assert.Empty(t, resolver.calls)
	assert.False(t, pc.HasCompleted(StageGeocode))
	assert.Equal(t, loading, pc.Draft.LoadingCoordinates)
	assert.Equal(t, unloading, pc.Draft.UnloadingCoordinates)
}

func TestExecute_ExtractionFailureSkipsDependents(t *testing.T) {
	resolver := &fakeResolver{}
	storeSink := &fakeSink{}
	p := fullPipeline(t,
		&fakeClassifier{cls: model.ClassificationOrder},
		&fakeExtractor{err: eris.New("no structure")},
		&fakeCleaner{},
		resolver,
		storeSink, &fakeSink{},
	)

	pc, err := p.Execute(context.Background(), NewContext(orderMessage()))
	require.NoError(t, err)

	assert.True(t, pc.HasFailed(StageExtract))
	assert.Empty(t, resolver.calls)
	assert.Empty(t, storeSink.persisted)
	assert.False(t, pc.HasCompleted(StagePersistStore))
}

type panicStage struct{}

func (panicStage) Name() string            { return "panic" }
func (panicStage) Sequence() int           { return 15 }
func (panicStage) Critical() bool          { return false }
func (panicStage) ShouldRun(*Context) bool { return true }
func (panicStage) Run(context.Context, *Context) error {
	panic("boom")
}

func TestExecute_PanicBecomesFailure(t *testing.T) {
	p, err := New(
		NewClassifyStage(&fakeClassifier{cls: model.ClassificationOther}),
		panicStage{},
	)
	require.NoError(t, err)

	pc, err := p.Execute(context.Background(), NewContext(orderMessage()))
	require.NoError(t, err)
	assert.True(t, pc.HasFailed("panic"))
	assert.Contains(t, pc.Err("panic").Error(), "panicked")
}

func TestNew_DuplicateSequenceRejected(t *testing.T) {
	_, err := New(
		NewClassifyStage(&fakeClassifier{}),
		NewClassifyStage(&fakeClassifier{}),
	)
	assert.Error(t, err)
}

func TestExecute_StoreFailureStillExports(t *testing.T) {
	exportSink := &fakeSink{}
	p := fullPipeline(t,
		&fakeClassifier{cls: model.ClassificationOrder},
		&fakeExtractor{draft: &model.OrderDraft{LoadingAddress: "Asaa"}},
		&fakeCleaner{},
		&fakeResolver{},
		&fakeSink{err: eris.New("db down")},
		exportSink,
	)

	pc, err := p.Execute(context.Background(), NewContext(orderMessage()))
	require.NoError(t, err)
	assert.True(t, pc.HasFailed(StagePersistStore))
	assert.True(t, pc.HasCompleted(StagePersistExport))
	require.Len(t, exportSink.persisted, 1)
}
