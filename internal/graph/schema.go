package graph

// schemaStatement is one idempotent constraint or index statement,
// carried per dialect since Neo4j and FalkorDB diverge on keywords
// and on which kinds of index they support (§4.3 dialect table).
type schemaStatement struct {
	name string
	neo4j   string
	falkor  string // empty means "not supported, omit"
}

// schemaCatalog is shared between both dialects: the set of
// constraints and indexes is the same catalogue, only the rendered
// statement differs per getSchemaForAdapter.
var schemaCatalog = []schemaStatement{
	{
		name:  "repository_name_unique",
		neo4j: "CREATE CONSTRAINT repository_name IF NOT EXISTS FOR (r:Repository) REQUIRE r.name IS UNIQUE",
		falkor: "CREATE CONSTRAINT repository_name IF NOT EXISTS FOR (r:Repository) ASSERT r.name IS UNIQUE",
	},
	{
		name:  "file_identity_key",
		neo4j: "CREATE CONSTRAINT file_identity IF NOT EXISTS FOR (f:File) REQUIRE (f.repository, f.path) IS NODE KEY",
		// FalkorDB has no composite NODE KEY; the adapter embeds a
		// synthetic file_id = "{repo}::{path}" and uniques on that.
		falkor: "CREATE CONSTRAINT file_id_unique IF NOT EXISTS FOR (f:File) ASSERT f.file_id IS UNIQUE",
	},
	{
		name:  "module_name_unique",
		neo4j: "CREATE CONSTRAINT module_name IF NOT EXISTS FOR (m:Module) REQUIRE m.name IS UNIQUE",
		falkor: "CREATE CONSTRAINT module_name IF NOT EXISTS FOR (m:Module) ASSERT m.name IS UNIQUE",
	},
	{
		name:  "concept_name_unique",
		neo4j: "CREATE CONSTRAINT concept_name IF NOT EXISTS FOR (c:Concept) REQUIRE c.name IS UNIQUE",
		falkor: "CREATE CONSTRAINT concept_name IF NOT EXISTS FOR (c:Concept) ASSERT c.name IS UNIQUE",
	},
	{
		name:  "function_repo_index",
		neo4j: "CREATE INDEX function_repo IF NOT EXISTS FOR (fn:Function) ON (fn.repository)",
		falkor: "CREATE INDEX IF NOT EXISTS FOR (fn:Function) ON (fn.repository)",
	},
	{
		name:  "class_repo_index",
		neo4j: "CREATE INDEX class_repo IF NOT EXISTS FOR (c:Class) ON (c.repository)",
		falkor: "CREATE INDEX IF NOT EXISTS FOR (c:Class) ON (c.repository)",
	},
	{
		name:  "file_repo_index",
		neo4j: "CREATE INDEX file_repo IF NOT EXISTS FOR (f:File) ON (f.repository)",
		falkor: "CREATE INDEX IF NOT EXISTS FOR (f:File) ON (f.repository)",
	},
	{
		name:  "chunk_chroma_id_index",
		neo4j: "CREATE INDEX chunk_chroma_id IF NOT EXISTS FOR (c:Chunk) ON (c.chromaId)",
		falkor: "CREATE INDEX IF NOT EXISTS FOR (c:Chunk) ON (c.chromaId)",
	},
	{
		name:  "function_name_fulltext",
		neo4j: "CREATE FULLTEXT INDEX function_name_fulltext IF NOT EXISTS FOR (fn:Function) ON EACH [fn.name, fn.signature]",
		falkor: "", // fulltext not supported on FalkorDB, omit
	},
}

// getSchemaForAdapter returns the dialect-specific statement set for
// the given backend, skipping statements the dialect omits.
func getSchemaForAdapter(adapterType AdapterType) []string {
	var out []string
	for _, s := range schemaCatalog {
		switch adapterType {
		case AdapterNeo4j:
			out = append(out, s.neo4j)
		case AdapterFalkorDB:
			if s.falkor != "" {
				out = append(out, s.falkor)
			}
		}
	}
	return out
}
