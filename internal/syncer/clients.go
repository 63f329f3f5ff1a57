package syncer

import (
	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/remote"
)

// ClientsFromCredentials builds an authenticated API per server.
func ClientsFromCredentials(creds []entities.ServerCredentials) map[string]Remote {
	clients := make(map[string]Remote, len(creds))
	for _, c := range creds {
		clients[c.ID] = remote.NewAPI(remote.NewGraphQLClient(c.URL, c.Token))
	}
	return clients
}
