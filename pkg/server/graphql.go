package server

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/nsavio/crabdb/pkg/engine"
)

// graphqlSchema builds a read-only schema exposing a single "pool" query
// field, the concrete home for github.com/graphql-go/graphql in this
// repo: an introspection surface over buffer pool and replacer
// statistics, not a query language over stored key/value pairs.
func graphqlSchema(eng *engine.Engine) (graphql.Schema, error) {
	poolStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "PoolStats",
		Description: "Buffer pool, replacer, and disk scheduler counters.",
		Fields: graphql.Fields{
			"poolSize":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"resident":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"evictable":         &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"hits":              &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"misses":            &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"evictions":         &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"replacerEvictions": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"schedulerReads":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"schedulerWrites":   &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"schedulerFailures": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"pool": &graphql.Field{
				Type:        poolStatsType,
				Description: "Current buffer pool, replacer, and disk scheduler statistics.",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pool := eng.Pool().Stats()
					replacer := eng.Pool().ReplacerStats()
					sched := eng.Pool().SchedulerStats()
					return map[string]interface{}{
						"poolSize":          pool.PoolSize,
						"resident":          pool.Resident,
						"evictable":         pool.Evictable,
						"hits":              pool.Hits,
						"misses":            pool.Misses,
						"evictions":         pool.Evictions,
						"replacerEvictions": replacer.TotalEvictions,
						"schedulerReads":    sched.Reads,
						"schedulerWrites":   sched.Writes,
						"schedulerFailures": sched.Failures,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

// graphQLHandler serves POST /graphql requests against a fixed schema.
type graphQLHandler struct {
	schema graphql.Schema
}

func newGraphQLHandler(eng *engine.Engine) (*graphQLHandler, error) {
	schema, err := graphqlSchema(eng)
	if err != nil {
		return nil, err
	}
	return &graphQLHandler{schema: schema}, nil
}

type graphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

func (h *graphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "GraphQL only accepts POST requests", http.StatusMethodNotAllowed)
		return
	}

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// graphiQLHandler serves a minimal interactive GraphiQL playground
// pointed at /graphql.
func graphiQLHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(graphiQLPage))
	}
}

const graphiQLPage = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>crabdb GraphiQL</title>
    <style>body { height: 100vh; margin: 0; } #graphiql { height: 100vh; }</style>
    <script crossorigin src="https://unpkg.com/react@17/umd/react.production.min.js"></script>
    <script crossorigin src="https://unpkg.com/react-dom@17/umd/react-dom.production.min.js"></script>
    <link rel="stylesheet" href="https://unpkg.com/graphiql@1.8.7/graphiql.min.css" />
</head>
<body>
    <div id="graphiql">Loading...</div>
    <script src="https://unpkg.com/graphiql@1.8.7/graphiql.min.js"></script>
    <script>
        const fetcher = GraphiQL.createFetcher({ url: '/graphql' });
        ReactDOM.render(
            React.createElement(GraphiQL, { fetcher: fetcher, defaultQuery: '{\n  pool {\n    poolSize\n    resident\n    hits\n    misses\n  }\n}\n' }),
            document.getElementById('graphiql'),
        );
    </script>
</body>
</html>
`
