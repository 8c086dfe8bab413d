package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alarmTarget struct {
	Kind string `json:"kind" uerp:"keyword"`
	Ref  string `json:"ref"`
}

type AlarmRule struct {
	Base
	Profile
	Metadata

	Severity  int           `json:"severity"`
	Threshold float64       `json:"threshold"`
	Enabled   bool          `json:"enabled"`
	FiredAt   time.Time     `json:"firedAt"`
	Targets   []alarmTarget `json:"targets"`
	Labels    []string      `json:"labels"`
}

var _ Model = (*AlarmRule)(nil)

func newAlarmInfo(t *testing.T) *Info {
	t.Helper()
	info, err := NewInfo(&AlarmRule{}, "metric.alarm", Config{
		Minor: 2,
		CRUD:  CRUDAll,
		Layer: LayerCSD,
		AAA:   AA,
		Cache: &Option{Expire: SecondsHour},
	})
	require.NoError(t, err)
	info.Bind("", "uerp", 1)
	return info
}

func TestInfoDerivation(t *testing.T) {
	info := newAlarmInfo(t)

	assert.Equal(t, "metric.alarm.AlarmRule", info.SRef)
	assert.Equal(t, "metric_alarm_alarmrule_1_2", info.DRef)
	assert.Equal(t, "/uerp/v1/metric/alarm/alarmrule", info.Path)
	assert.Equal(t, []string{"Alarm Metric"}, info.Tags)
	assert.True(t, info.CRUD.CanDelete())
	assert.True(t, info.Layer.HasCache())
	assert.True(t, info.AAA.RequiresACL())
	assert.False(t, info.AAA.RequiresOwner())
	assert.Equal(t, SecondsHour, info.Cache.Expire)
	assert.Equal(t, 0, info.Search.Expire)
}

func TestInfoRejectsNonSchema(t *testing.T) {
	_, err := NewInfo(nil, "metric.alarm", Config{})
	assert.Error(t, err)
}

func TestSetIdentityAndStamp(t *testing.T) {
	info := newAlarmInfo(t)

	rule := &AlarmRule{}
	rule.SetIdentity(info, "")
	require.NotEmpty(t, rule.ID)
	assert.Equal(t, info.SRef, rule.SRef)
	assert.Equal(t, info.Path+"/"+rule.ID, rule.URef)

	rule.Stamp("acme", "alice", false)
	assert.Equal(t, "acme", rule.Org)
	assert.Equal(t, "alice", rule.Owner)
	assert.False(t, rule.Deleted)
	assert.NotZero(t, rule.TStamp)

	kept := rule.ID
	rule.SetIdentity(info, kept)
	assert.Equal(t, kept, rule.ID)
}

func TestMetaReachesEmbeddedBase(t *testing.T) {
	rule := &AlarmRule{}
	var m Model = rule
	m.Meta().ID = "r-1"
	assert.Equal(t, "r-1", rule.ID)
}

func TestFieldsOf(t *testing.T) {
	info := newAlarmInfo(t)

	byName := map[string]Field{}
	for _, f := range info.Fields {
		byName[f.Name] = f
	}

	require.Equal(t, "id", info.Fields[0].Name)
	assert.Equal(t, KindUUID, info.Fields[0].Kind)
	assert.True(t, info.Fields[0].IsID)

	assert.Equal(t, KindString, byName["description"].Kind)
	assert.True(t, byName["name"].Keyword)
	assert.Equal(t, KindInt, byName["severity"].Kind)
	assert.Equal(t, KindFloat, byName["threshold"].Kind)
	assert.Equal(t, KindBool, byName["enabled"].Kind)
	assert.Equal(t, KindTime, byName["firedAt"].Kind)
	assert.Equal(t, KindInt, byName["tstamp"].Kind)

	targets := byName["targets"]
	require.Equal(t, KindList, targets.Kind)
	require.NotNil(t, targets.Elem)
	require.Equal(t, KindObject, targets.Elem.Kind)
	assert.Len(t, targets.Elem.Nested, 2)

	labels := byName["labels"]
	require.Equal(t, KindList, labels.Kind)
	assert.Equal(t, KindString, labels.Elem.Kind)

	// Free-form maps become open objects with no declared properties.
	meta := byName["metadata"]
	require.Equal(t, KindObject, meta.Kind)
	assert.Empty(t, meta.Nested)
}

func TestFieldsOfRejectsUnmappable(t *testing.T) {
	type Bad struct {
		Base
		Weird chan int `json:"weird"`
	}
	_, err := NewInfo(&Bad{}, "metric.alarm", Config{})
	assert.ErrorContains(t, err, "no backend mapping")

	type BadKeys struct {
		Base
		Weird map[int]string `json:"weird"`
	}
	_, err = NewInfo(&BadKeys{}, "metric.alarm", Config{})
	assert.ErrorContains(t, err, "non-string map keys")

	type BadValues struct {
		Base
		Weird map[string]chan int `json:"weird"`
	}
	_, err = NewInfo(&BadValues{}, "metric.alarm", Config{})
	assert.ErrorContains(t, err, "no backend mapping")
}

func TestMetadataHelpers(t *testing.T) {
	rule := &AlarmRule{}
	rule.SetMeta("team", "platform").SetMeta("tier", "gold")
	assert.Equal(t, "platform", rule.GetMeta("team"))

	rule.DelMeta("tier")
	assert.Equal(t, "", rule.GetMeta("tier"))
	assert.Len(t, rule.Metadata.Metadata, 1)
}

func TestQueryProjection(t *testing.T) {
	q := &Query{}
	assert.False(t, q.Projected())
	assert.Nil(t, q.Projection())

	q = &Query{Fields: []string{"name", "severity", "id"}}
	assert.True(t, q.Projected())
	assert.Equal(t, []string{"id", "sref", "uref", "name", "severity"}, q.Projection())
}

func TestAuthInfoChecks(t *testing.T) {
	info := AuthInfo{
		Realm:       "acme",
		Username:    "alice",
		Policy:      []string{"operator"},
		ReadAllowed: []string{"metric.alarm.AlarmRule"},
	}

	assert.True(t, info.CheckAccount("acme", "alice"))
	assert.False(t, info.CheckAccount("acme", "bob"))
	assert.True(t, info.CheckPolicy("operator"))
	assert.True(t, info.CheckRead("metric.alarm.AlarmRule"))
	assert.False(t, info.CheckCreate("metric.alarm.AlarmRule"))
	assert.False(t, info.CheckAdmin())
}

func TestDocumentRoundTrip(t *testing.T) {
	info := newAlarmInfo(t)

	rule := &AlarmRule{Severity: 3, Enabled: true}
	rule.Name = "cpu-high"
	rule.SetIdentity(info, "")

	doc, err := ToDocument(rule)
	require.NoError(t, err)
	assert.Equal(t, rule.ID, DocumentString(doc, "id"))
	assert.Equal(t, "cpu-high", DocumentString(doc, "name"))

	back, err := FromDocument(info, doc)
	require.NoError(t, err)
	got, ok := back.(*AlarmRule)
	require.True(t, ok)
	assert.Equal(t, rule.ID, got.ID)
	assert.Equal(t, 3, got.Severity)
	assert.True(t, got.Enabled)
}
