package mapper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/BearPays/code-review-assistant-back/internal/entity"
	"github.com/BearPays/code-review-assistant-back/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCorpusChunkMapperKeepsVector(t *testing.T) {
	m := NewCorpusChunkMapper()
	in := &entity.CorpusChunk{
		Id:             uuid.New(),
		ChangeSetId:    "proj1",
		Corpus:         "code",
		FilePath:       "src/auth.go",
		Document:       "func Login() {}",
		EmbeddingValue: []float32{0.1, 0.2},
	}

	out := m.ToEntity(m.ToModel(in))

	assert.Equal(t, in.EmbeddingValue, out.EmbeddingValue)
	assert.Equal(t, "src/auth.go", out.FilePath)
	assert.Nil(t, m.ToEntity(nil))
}

func TestChangeSetMapperZeroUpdatedAt(t *testing.T) {
	m := NewChangeSetMapper()
	e := m.ToEntity(&model.ChangeSet{Id: "proj1", CreatedAt: time.Now()})
	assert.Nil(t, e.UpdatedAt)

	p := m.PayloadToModel(&entity.ChangeSetPayload{ChangeSetId: "proj1", Payload: json.RawMessage(`{"title":"x"}`)})
	assert.JSONEq(t, `{"title":"x"}`, string(p.Payload))
}
