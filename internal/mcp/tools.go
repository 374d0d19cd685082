package mcp

import "github.com/mark3labs/mcp-go/mcp"

var splitToolDef = mcp.NewTool("chatsplit_split",
	mcp.WithDescription("Flatten a conversation export and write it as at most max_parts JSON shard files. "+
		"Malformed conversations are skipped and reported. The run is recorded in history."),
	mcp.WithString("input_path",
		mcp.Required(),
		mcp.Description("Path to the .json export (an array of conversations)"),
	),
	mcp.WithString("output_dir",
		mcp.Required(),
		mcp.Description("Directory for shard files; created when there is something to write"),
	),
	mcp.WithNumber("max_parts",
		mcp.Description("Upper bound on shard files (default: config max_parts, 5)"),
		mcp.Min(1),
	),
	mcp.WithString("prefix",
		mcp.Description("Shard file name prefix (default: input file stem)"),
	),
	mcp.WithDestructiveHintAnnotation(false),
)

var inspectToolDef = mcp.NewTool("chatsplit_inspect",
	mcp.WithDescription("Flatten a conversation export without writing anything. "+
		"Returns counts, per-role totals, a token estimate and the planned shard sizes."),
	mcp.WithString("input_path",
		mcp.Required(),
		mcp.Description("Path to the .json export"),
	),
	mcp.WithNumber("max_parts",
		mcp.Description("Upper bound used for the shard plan (default: config max_parts)"),
		mcp.Min(1),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var historyToolDef = mcp.NewTool("chatsplit_history",
	mcp.WithDescription("List recorded split runs, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default 20, max 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Number of runs to skip"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var runToolDef = mcp.NewTool("chatsplit_run",
	mcp.WithDescription("Show one recorded run. With shard set, also return that shard's flattened conversations."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Run id (ULID)"),
	),
	mcp.WithNumber("shard",
		mcp.Description("1-based shard index to read back"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var purgeToolDef = mcp.NewTool("chatsplit_purge",
	mcp.WithDescription("Delete history entries older than N days. Shard files on disk are kept."),
	mcp.WithNumber("older_than_days",
		mcp.Description("Age threshold in days (0 deletes every run)"),
		mcp.Min(0),
	),
	mcp.WithDestructiveHintAnnotation(true),
)
