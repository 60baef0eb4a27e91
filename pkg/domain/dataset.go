package domain

// Row is one structured record of a datasource, keyed by column name.
type Row map[string]string

// RowBatch is a chunk of rows read from a datasource.
// Columns is the datasource schema; it is the same for every batch.
type RowBatch struct {
	Columns []string `json:"columns"`
	Offset  int      `json:"offset"`
	Rows    []Row    `json:"rows"`
}

// RowRef locates a record within its datasource.
type RowRef struct {
	Source string `json:"source"`
	Row    int    `json:"row"`
}

// RowError describes a row that was rejected during import.
type RowError struct {
	Ref    RowRef `json:"ref"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

// Dataset is the normalized output of a DataSet node.
type Dataset struct {
	Source     string            `json:"source"`
	Role       DataSetRole       `json:"role"`
	Nodes      []GraphNode       `json:"nodes"`
	Edges      []GraphEdge       `json:"edges"`
	Layers     []GraphLayer      `json:"layers"`
	Provenance map[string]RowRef `json:"provenance,omitempty"`
	Malformed  []RowError        `json:"malformed,omitempty"`
}
