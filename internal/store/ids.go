package store

import (
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix marks ids that were minted locally and mean nothing to the authority.
const TempIDPrefix = "local-"

type idSource struct {
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

func newIDSource() idSource {
	return idSource{now: time.Now, newID: uuid.NewV7}
}

func (i idSource) tempID() (string, error) {
	id, err := i.newID()
	if err != nil {
		return "", err
	}
	return TempIDPrefix + id.String(), nil
}
