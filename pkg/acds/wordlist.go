package acds

// adjectives and nouns are the two component dictionaries a session string's
// three hyphenated segments are drawn from. Each segment concatenates one
// adjective and one noun (e.g. "quietfox"), so the usable entropy per
// segment is log2(len(adjectives)*len(nouns)) rather than log2(len(single
// list)). This keeps both lists hand-curated and short while still clearing
// the 40-bit floor: with 128 adjectives and 128 nouns, each segment carries
// 14 bits and three segments carry 42.
var adjectives = []string{
	"quiet", "brave", "bright", "calm", "cold", "cool", "dark", "deep",
	"eager", "early", "fair", "fast", "fine", "firm", "fond", "free",
	"fresh", "full", "giant", "glad", "gold", "good", "grand", "green",
	"gray", "happy", "hard", "high", "hot", "huge", "kind", "large",
	"late", "light", "little", "lively", "long", "loud", "lucky", "mellow",
	"mighty", "mild", "misty", "neat", "nice", "noble", "odd", "old",
	"pale", "plain", "plush", "poor", "proud", "pure", "quick", "rare",
	"red", "rich", "rigid", "ripe", "rosy", "round", "rough", "royal",
	"rural", "sad", "safe", "sharp", "shiny", "short", "shy", "silent",
	"silky", "silver", "simple", "slim", "slow", "small", "smart", "smooth",
	"soft", "solid", "sound", "sour", "spare", "spry", "stark", "steady",
	"stern", "still", "stout", "strong", "sturdy", "subtle", "sunny", "sweet",
	"swift", "tall", "tame", "tan", "tart", "tense", "thick", "thin",
	"tidy", "tight", "tiny", "tired", "tough", "true", "tepid", "upper",
	"urban", "vague", "vain", "valid", "vast", "vivid", "warm", "weak",
	"wealthy", "weary", "wide", "wild", "windy", "wiry", "wise", "witty",
}

var nouns = []string{
	"otter", "falcon", "wolf", "heron", "badger", "beetle", "bison", "cobra",
	"condor", "cougar", "coyote", "crane", "cricket", "dingo", "dolphin", "dove",
	"eagle", "egret", "elk", "ferret", "finch", "fox", "gazelle", "gecko",
	"gibbon", "goose", "grouse", "gull", "hare", "hawk", "mantis", "hornet",
	"hyena", "ibex", "ibis", "jackal", "jaguar", "kestrel", "kite", "koala",
	"lemur", "leopard", "lion", "lizard", "llama", "lynx", "magpie", "mamba",
	"marlin", "marmot", "martin", "mink", "mole", "moose", "moth", "mouse",
	"newt", "ocelot", "opossum", "oriole", "osprey", "ermine", "owl", "panda",
	"panther", "parrot", "perch", "pigeon", "plover", "puffin", "puma", "quail",
	"rabbit", "raccoon", "ram", "raven", "rhino", "robin", "salmon", "seal",
	"shark", "sheep", "shrew", "skunk", "sloth", "snail", "snake", "snipe",
	"sparrow", "spider", "squid", "stoat", "stork", "swan", "tapir", "tern",
	"tiger", "toad", "toucan", "trout", "turtle", "viper", "vole", "vulture",
	"wasp", "weasel", "whale", "wolverine", "wombat", "wren", "yak", "zebra",
	"bear", "bee", "bobcat", "boar", "bull", "camel", "caribou", "cat",
	"chamois", "cheetah", "chimp", "civet", "crow", "deer", "dodo", "donkey",
}
