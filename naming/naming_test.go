package naming

import (
	"testing"

	"github.com/stretchr/testify/require"

	"talk-lab/domain"
	"talk-lab/locale"
)

func loc() Localizer {
	return locale.NewEnglish()
}

func TestComputeDisplayName_OneToOne_Uses_Other_Participant(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoom(domain.OneToOneCall)
	users := []Participant{
		{Identity: "alice", Label: "Alice A."},
		{Identity: "bob", Label: "Bob B."},
	}

	res, err := ComputeDisplayName(room, users, 0, "alice", loc())

	req.NoError(err)
	req.Equal("bob", res.Name)
	req.Equal("Bob B.", res.DisplayName)
}

func TestComputeDisplayName_OneToOne_Ignores_Explicit_Name(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoom(domain.OneToOneCall)
	room.Name = "should never show"
	users := []Participant{
		{Identity: "alice", Label: "Alice A."},
		{Identity: "bob", Label: "Bob B."},
	}

	res, err := ComputeDisplayName(room, users, 0, "bob", loc())

	req.NoError(err)
	req.Equal("Alice A.", res.DisplayName)
}

func TestComputeDisplayName_OneToOne_Wrong_Count_Is_Invariant_Violation(t *testing.T) {
	room := domain.NewRoom(domain.OneToOneCall)

	for name, users := range map[string][]Participant{
		"no other participant": {{Identity: "alice", Label: "Alice A."}},
		"two other participants": {
			{Identity: "alice", Label: "Alice A."},
			{Identity: "bob", Label: "Bob B."},
			{Identity: "clara", Label: "Clara C."},
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ComputeDisplayName(room, users, 0, "alice", loc())

			var inv *InvariantError
			require.ErrorAs(t, err, &inv)
		})
	}
}

func TestComputeDisplayName_Group_Joins_Other_Labels(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoom(domain.GroupCall)
	users := []Participant{
		{Identity: "alice", Label: "Alice A."},
		{Identity: "bob", Label: "Bob B."},
	}

	res, err := ComputeDisplayName(room, users, 0, "alice", loc())

	req.NoError(err)
	req.Equal("Bob B.", res.DisplayName)
	req.Empty(res.GuestSummary)
}

func TestComputeDisplayName_Group_Alone_Falls_Back_To_You(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoom(domain.GroupCall)
	users := []Participant{{Identity: "alice", Label: "Alice A."}}

	res, err := ComputeDisplayName(room, users, 0, "alice", loc())

	req.NoError(err)
	req.Equal("You", res.DisplayName)
}

func TestComputeDisplayName_Group_Explicit_Name_Wins(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoom(domain.GroupCall)
	room.Name = "Weekly sync"
	users := []Participant{
		{Identity: "alice", Label: "Alice A."},
		{Identity: "bob", Label: "Bob B."},
	}

	res, err := ComputeDisplayName(room, users, 0, "alice", loc())

	req.NoError(err)
	req.Equal("Weekly sync", res.Name)
	req.Equal("Weekly sync", res.DisplayName)
}

func TestComputeDisplayName_Public_User_Caller_Gets_Guest_Phrase(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoom(domain.PublicCall)
	users := []Participant{
		{Identity: "alice", Label: "Alice A."},
		{Identity: "bob", Label: "Bob B."},
	}

	res, err := ComputeDisplayName(room, users, 2, "alice", loc())

	req.NoError(err)
	req.Equal("2 guests", res.GuestSummary)
	req.Equal("Bob B., 2 guests", res.DisplayName)
}

func TestComputeDisplayName_Public_Guest_Caller_Appends_You(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoom(domain.PublicCall)
	users := []Participant{
		{Identity: "alice", Label: "Alice A."},
	}

	// Given an anonymous caller and one other active guest
	res, err := ComputeDisplayName(room, users, 1, "", loc())

	req.NoError(err)
	req.Equal("1 other guest", res.GuestSummary)
	req.Equal("Alice A., You, 1 other guest", res.DisplayName)
}

func TestComputeDisplayName_Public_Zero_Guests_No_Phrase(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoom(domain.PublicCall)
	users := []Participant{
		{Identity: "alice", Label: "Alice A."},
		{Identity: "bob", Label: "Bob B."},
	}

	res, err := ComputeDisplayName(room, users, 0, "alice", loc())

	req.NoError(err)
	req.Empty(res.GuestSummary)
	req.Equal("Bob B.", res.DisplayName)
}

func TestComputeDisplayName_Public_Explicit_Name_Keeps_Guest_Summary(t *testing.T) {
	req := require.New(t)
	room := domain.NewRoom(domain.PublicCall)
	room.Name = "Townhall"

	res, err := ComputeDisplayName(room, nil, 3, "alice", loc())

	req.NoError(err)
	req.Equal("Townhall", res.DisplayName)
	req.Equal("3 guests", res.GuestSummary)
}

func TestComputeDisplayName_Unknown_Type_Is_Invariant_Violation(t *testing.T) {
	room := domain.NewRoom(domain.RoomType(99))

	_, err := ComputeDisplayName(room, nil, 0, "alice", loc())

	var inv *InvariantError
	require.ErrorAs(t, err, &inv)
}
