package ownership

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/models"
)

func uptr(v uint) *uint { return &v }

func TestResolveScenario(t *testing.T) {
	const manager, client, otherManager = 10, 20, 30
	record := &models.RenewalItem{Ownership: models.Ownership{CreatedBy: manager, StandAloneID: uptr(client)}}

	assert.True(t, Resolve(record, client))
	assert.True(t, Resolve(record, manager))
	assert.False(t, Resolve(record, otherManager))
}

func TestResolveProperty(t *testing.T) {
	ids := []uint{0, 1, 2, 3}
	for _, createdBy := range ids {
		for _, sa := range append([]uint{}, ids...) {
			var standAlone *uint
			if sa != 0 {
				standAlone = uptr(sa)
			}
			rec := &models.Audit{Ownership: models.Ownership{CreatedBy: createdBy, StandAloneID: standAlone}}
			for _, a := range ids {
				want := a != 0 && (a == createdBy || (standAlone != nil && a == *standAlone))
				assert.Equal(t, want, Resolve(rec, a), "createdBy=%d standAlone=%v acting=%d", createdBy, standAlone, a)
			}
		}
	}
}

func TestResolveNilRecord(t *testing.T) {
	assert.False(t, Resolve(nil, 1))
}

func TestStamp(t *testing.T) {
	self := Stamp(5, 5)
	assert.Equal(t, uint(5), self.CreatedBy)
	assert.Nil(t, self.StandAloneID)

	onBehalf := Stamp(7, 9)
	assert.Equal(t, uint(7), onBehalf.CreatedBy)
	require.NotNil(t, onBehalf.StandAloneID)
	assert.Equal(t, uint(9), *onBehalf.StandAloneID)

	// The stamped record must be visible to both sides.
	rec := &models.SpotCheck{Ownership: onBehalf}
	assert.True(t, Resolve(rec, 7))
	assert.True(t, Resolve(rec, 9))
}

func TestFilterUnrestricted(t *testing.T) {
	f := Filter{Unrestricted: true}
	assert.True(t, f.Matches(&models.Audit{Ownership: models.Ownership{CreatedBy: 99}}))
}

// The storage scope must select exactly the rows Resolve accepts.
func TestFilterScopeMatchesResolve(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Audit{}))

	var all []models.Audit
	for createdBy := uint(1); createdBy <= 3; createdBy++ {
		for sa := uint(0); sa <= 3; sa++ {
			a := models.Audit{Title: "audit", Outcome: models.AuditOutcomePending, Ownership: models.Ownership{CreatedBy: createdBy}}
			if sa != 0 {
				a.StandAloneID = uptr(sa)
			}
			require.NoError(t, db.Create(&a).Error)
			all = append(all, a)
		}
	}

	for acting := uint(0); acting <= 4; acting++ {
		f := For(acting)
		var got []models.Audit
		require.NoError(t, db.Scopes(f.Scope).Order("id").Find(&got).Error)

		var want []uint
		for i := range all {
			if f.Matches(&all[i]) {
				want = append(want, all[i].ID)
			}
		}
		var gotIDs []uint
		for _, a := range got {
			gotIDs = append(gotIDs, a.ID)
		}
		assert.Equal(t, want, gotIDs, "acting=%d", acting)
	}
}
