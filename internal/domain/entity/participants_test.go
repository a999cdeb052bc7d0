package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParticipantsHasRole(t *testing.T) {
	p := Participants{
		AuthorID:     "author",
		ReviewerIDs:  []string{"rev1", "rev2", "maint"},
		MaintainerID: "maint",
	}

	assert.True(t, p.HasRole("author", RoleAuthor))
	assert.False(t, p.HasRole("author", RoleReviewer))
	assert.False(t, p.HasRole("author", RoleMaintainer))

	assert.True(t, p.HasRole("rev1", RoleReviewer))
	assert.False(t, p.HasRole("rev1", RoleMaintainer))

	// Maintainer может одновременно быть ревьювером.
	assert.True(t, p.HasRole("maint", RoleReviewer))
	assert.True(t, p.HasRole("maint", RoleMaintainer))

	// Объединение ролей: достаточно членства в любой из них.
	assert.True(t, p.HasRole("rev2", RoleReviewer, RoleMaintainer))
	assert.False(t, p.HasRole("stranger", RoleAuthor, RoleReviewer, RoleMaintainer))
}

func TestParticipantsIsParticipant(t *testing.T) {
	p := Participants{
		AuthorID:     "author",
		ReviewerIDs:  []string{"rev1"},
		MaintainerID: "maint",
	}

	assert.True(t, p.IsParticipant("author"))
	assert.True(t, p.IsParticipant("rev1"))
	assert.True(t, p.IsParticipant("maint"))
	assert.False(t, p.IsParticipant("stranger"))
	assert.False(t, p.IsParticipant(""))
}
