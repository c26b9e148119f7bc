package mock

import (
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, NewStore())
}
