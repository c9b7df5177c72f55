package outreach

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homebid/match-cli/internal/config"
	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/pkg/places"
)

func testEscalator(st *mockStore, dir places.Client) *Escalator {
	return NewEscalator(st, dir,
		&config.OutreachConfig{SeedLimit: 10, LookupConcurrency: 4},
		&config.PlacesConfig{RadiusMeters: 40000, MaxResults: 20, RPS: 1000},
		0,
	)
}

func place(id, name, phone string) places.Place {
	return places.Place{
		ID:                  id,
		DisplayName:         places.DisplayName{Text: name},
		NationalPhoneNumber: phone,
		Location:            &places.LatLng{Latitude: 40.01, Longitude: -104.99},
	}
}

func testBidCard() model.BidCard {
	return model.BidCard{
		ID:       "bc-1",
		Category: model.CategoryRepair,
		Location: &model.LatLng{Lat: 40, Lng: -105},
	}
}

func TestEscalator_Escalate_NoCoordinates(t *testing.T) {
	e := testEscalator(&mockStore{}, &mockDirectory{})

	_, err := e.Escalate(context.Background(), model.BidCard{ID: "bc-1", Category: model.CategoryRepair}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no coordinates")
}

func TestEscalator_Escalate_DiscoversAndQueues(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	require.Len(t, kws, 2)

	dir := &mockDirectory{responses: map[string]*places.KeywordSearchResponse{
		kws[0]: {Places: []places.Place{
			place("p-a", "A Plus Repair", "(303) 555-0101"),
			place("p-b", "Best Handyman", "(303) 555-0102"),
		}},
		kws[1]: {Places: []places.Place{
			place("p-c", "Contactless Co", ""),
		}},
	}}
	st := &mockStore{}
	e := testEscalator(st, dir)

	summary, err := e.Escalate(context.Background(), testBidCard(), nil)
	require.NoError(t, err)

	assert.Equal(t, "bc-1", summary.BidCardID)
	assert.Equal(t, 3, summary.Discovered)
	assert.Equal(t, 3, summary.ProspectsNew)
	assert.Equal(t, 0, summary.ProspectsReused)
	assert.Equal(t, 2, summary.InvitationsQueued)
	assert.Equal(t, 1, summary.InvitationsFailed, "contactless prospect fails immediately")
	assert.Equal(t, 0, summary.InvitationsSkipped)
	assert.Equal(t, 0, summary.LookupFailures)
	assert.False(t, summary.Partial())

	require.Len(t, st.created, 3)
	first := st.created[0]
	require.NotNil(t, first.PlaceID)
	assert.Equal(t, "p-a", *first.PlaceID)
	assert.Equal(t, "A Plus Repair", first.Name)
	require.NotNil(t, first.Phone)
	assert.Equal(t, "+13035550101", *first.Phone)
	assert.Equal(t, "places", first.Source)
	assert.Equal(t, []model.Category{model.CategoryRepair}, first.Categories)
	assert.NotEmpty(t, first.Raw)

	require.Len(t, st.invites, 3)
	for _, inv := range st.invites {
		assert.Equal(t, "bc-1", inv.BidCardID)
		require.NotNil(t, inv.ProspectID)
		assert.Nil(t, inv.ContractorID)
		if inv.Status == model.InviteFailed {
			assert.Equal(t, model.ChannelInternal, inv.Channel)
			assert.Equal(t, "no contact method", inv.Reason)
		} else {
			assert.Equal(t, model.InviteQueued, inv.Status)
			assert.Equal(t, model.ChannelSMS, inv.Channel)
		}
	}
}

func TestEscalator_Escalate_MergesAcrossKeywords(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	same := place("p-dup", "Twice Found LLC", "(303) 555-0199")
	dir := &mockDirectory{responses: map[string]*places.KeywordSearchResponse{
		kws[0]: {Places: []places.Place{same}},
		kws[1]: {Places: []places.Place{same}},
	}}
	st := &mockStore{}
	e := testEscalator(st, dir)

	summary, err := e.Escalate(context.Background(), testBidCard(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Discovered)
	assert.Equal(t, 1, summary.ProspectsNew)
	assert.Len(t, st.created, 1)
}

func TestEscalator_Escalate_DropsKnownContractors(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	dir := &mockDirectory{responses: map[string]*places.KeywordSearchResponse{
		kws[0]: {Places: []places.Place{
			place("ctr-registered", "Already On Platform", "(303) 555-0110"),
			place("p-new", "Fresh Find", "(303) 555-0111"),
		}},
	}}
	st := &mockStore{}
	e := testEscalator(st, dir)

	summary, err := e.Escalate(context.Background(), testBidCard(), []string{"ctr-registered"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Discovered)
	assert.Equal(t, 1, summary.ProspectsNew)
	require.Len(t, st.created, 1)
	assert.Equal(t, "Fresh Find", st.created[0].Name)
}

func TestEscalator_Escalate_SeedCapHoldsInSortedOrder(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	dir := &mockDirectory{responses: map[string]*places.KeywordSearchResponse{
		kws[0]: {Places: []places.Place{
			place("p-c", "Company C", "(303) 555-0103"),
			place("p-a", "Company A", "(303) 555-0101"),
			place("p-b", "Company B", "(303) 555-0102"),
		}},
	}}
	st := &mockStore{}
	e := NewEscalator(st, dir,
		&config.OutreachConfig{SeedLimit: 2, LookupConcurrency: 4},
		&config.PlacesConfig{RadiusMeters: 40000, MaxResults: 20, RPS: 1000},
		0,
	)

	summary, err := e.Escalate(context.Background(), testBidCard(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Discovered)
	assert.Equal(t, 2, summary.ProspectsNew)
	require.Len(t, st.created, 2)
	assert.Equal(t, "Company A", st.created[0].Name)
	assert.Equal(t, "Company B", st.created[1].Name)
}

func TestEscalator_Escalate_ReusesExistingByPlaceID(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	placeID := "p-known"
	phone := "+13035550120"
	existing := &model.Prospect{ID: "pros-existing", PlaceID: &placeID, Name: "Known Co", Phone: &phone}
	st := &mockStore{prospects: map[string]*model.Prospect{existing.ID: existing}}

	dir := &mockDirectory{responses: map[string]*places.KeywordSearchResponse{
		kws[0]: {Places: []places.Place{place("p-known", "Known Co", "(303) 555-0120")}},
	}}
	e := testEscalator(st, dir)

	summary, err := e.Escalate(context.Background(), testBidCard(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.ProspectsNew)
	assert.Equal(t, 1, summary.ProspectsReused)
	assert.Equal(t, 1, summary.InvitationsQueued)
	assert.Empty(t, st.created)
	require.Len(t, st.refreshed, 1)
	assert.Equal(t, "pros-existing", st.refreshed[0].ID)
	assert.NotEmpty(t, st.refreshed[0].Raw)
}

func TestEscalator_Escalate_ReusesByNormalizedPhone(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	phone := "+13035550130"
	existing := &model.Prospect{ID: "pros-phone", Name: "Phone Match Co", Phone: &phone}
	st := &mockStore{prospects: map[string]*model.Prospect{existing.ID: existing}}

	// Different place id, same phone once normalized.
	dir := &mockDirectory{responses: map[string]*places.KeywordSearchResponse{
		kws[0]: {Places: []places.Place{place("p-other", "Phone Match Co", "303-555-0130")}},
	}}
	e := testEscalator(st, dir)

	summary, err := e.Escalate(context.Background(), testBidCard(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ProspectsNew)
	assert.Equal(t, 1, summary.ProspectsReused)
	assert.Empty(t, st.created)
}

func TestEscalator_Escalate_UniqueViolationRace(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	placeID := "p-race"
	phone := "+13035550140"
	winner := &model.Prospect{ID: "pros-winner", PlaceID: &placeID, Name: "Race Winner", Phone: &phone}
	st := &mockStore{uniqueViolations: 1, raceProspect: winner}

	dir := &mockDirectory{responses: map[string]*places.KeywordSearchResponse{
		kws[0]: {Places: []places.Place{place("p-race", "Race Winner", "(303) 555-0140")}},
	}}
	e := testEscalator(st, dir)

	summary, err := e.Escalate(context.Background(), testBidCard(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.ProspectsNew, "losing a racing insert reuses the winner's row")
	assert.Equal(t, 1, summary.ProspectsReused)
	assert.Equal(t, 1, summary.InvitationsQueued)
	require.Len(t, st.invites, 1)
	assert.Equal(t, "pros-winner", *st.invites[0].ProspectID)
}

func TestEscalator_Escalate_LookupFailuresAreSoft(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	dir := &mockDirectory{
		responses: map[string]*places.KeywordSearchResponse{
			kws[0]: {Places: []places.Place{place("p-a", "Solo Result", "(303) 555-0150")}},
		},
		errs: map[string]error{
			kws[1]: eris.New("quota exceeded"),
		},
	}
	st := &mockStore{}
	e := testEscalator(st, dir)

	summary, err := e.Escalate(context.Background(), testBidCard(), nil)
	require.NoError(t, err, "a failed keyword never fails the run")

	assert.Equal(t, 1, summary.LookupFailures)
	assert.Equal(t, 1, summary.Discovered)
	assert.Equal(t, 1, summary.ProspectsNew)
	assert.True(t, summary.Partial())
}

func TestEscalator_Escalate_AllLookupsFail(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	dir := &mockDirectory{errs: map[string]error{
		kws[0]: eris.New("timeout"),
		kws[1]: eris.New("timeout"),
	}}
	st := &mockStore{}
	e := testEscalator(st, dir)

	summary, err := e.Escalate(context.Background(), testBidCard(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.LookupFailures)
	assert.Equal(t, 0, summary.Discovered)
	assert.Empty(t, st.created)
}

func TestEscalator_Escalate_IdempotentInvitations(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	placeID := "p-rerun"
	phone := "+13035550160"
	existing := &model.Prospect{ID: "pros-rerun", PlaceID: &placeID, Name: "Rerun Co", Phone: &phone}
	st := &mockStore{
		prospects:       map[string]*model.Prospect{existing.ID: existing},
		existingInvites: map[string]bool{"bc-1/pros-rerun": true},
	}

	dir := &mockDirectory{responses: map[string]*places.KeywordSearchResponse{
		kws[0]: {Places: []places.Place{place("p-rerun", "Rerun Co", "(303) 555-0160")}},
	}}
	e := testEscalator(st, dir)

	summary, err := e.Escalate(context.Background(), testBidCard(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ProspectsReused)
	assert.Equal(t, 0, summary.InvitationsQueued)
	assert.Equal(t, 1, summary.InvitationsSkipped, "existing invitation counts as a duplicate skip")
	assert.Empty(t, st.invites)
}

func TestEscalator_Escalate_SkipsNonActionableEntities(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	dir := &mockDirectory{responses: map[string]*places.KeywordSearchResponse{
		kws[0]: {Places: []places.Place{
			place("p-ok", "Has A Name", "(303) 555-0170"),
			place("p-noname", "", "(303) 555-0171"),
		}},
	}}
	st := &mockStore{}
	e := testEscalator(st, dir)

	summary, err := e.Escalate(context.Background(), testBidCard(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Discovered)
	assert.Equal(t, 1, summary.ProspectsNew)
	require.Len(t, st.created, 1)
	assert.Equal(t, "Has A Name", st.created[0].Name)
}

func TestEscalator_Escalate_EmailFallbackChannel(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	placeID := "p-email"
	email := "bids@emailonly.example"
	existing := &model.Prospect{ID: "pros-email", PlaceID: &placeID, Name: "Email Only Co", Email: &email}
	st := &mockStore{prospects: map[string]*model.Prospect{existing.ID: existing}}

	dir := &mockDirectory{responses: map[string]*places.KeywordSearchResponse{
		kws[0]: {Places: []places.Place{place("p-email", "Email Only Co", "")}},
	}}
	e := testEscalator(st, dir)

	summary, err := e.Escalate(context.Background(), testBidCard(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.InvitationsQueued)
	require.Len(t, st.invites, 1)
	assert.Equal(t, model.ChannelEmail, st.invites[0].Channel)
}

func TestEscalator_Escalate_SearchRequestShape(t *testing.T) {
	kws := CategoryKeywords(model.CategoryRepair)
	dir := &mockDirectory{}
	e := testEscalator(&mockStore{}, dir)

	bc := testBidCard()
	_, err := e.Escalate(context.Background(), bc, nil)
	require.NoError(t, err)

	require.Len(t, dir.requests, len(kws))
	for _, req := range dir.requests {
		assert.Contains(t, kws, req.TextQuery)
		assert.Equal(t, 20, req.MaxResultCount)
		require.NotNil(t, req.LocationRestriction)
		rect := req.LocationRestriction.Rectangle
		assert.Less(t, rect.Low.Latitude, bc.Location.Lat)
		assert.Greater(t, rect.High.Latitude, bc.Location.Lat)
		assert.Less(t, rect.Low.Longitude, bc.Location.Lng)
		assert.Greater(t, rect.High.Longitude, bc.Location.Lng)
	}
}
