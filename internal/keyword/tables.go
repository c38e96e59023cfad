package keyword

// Default tables seeded from the seller-catalog domain. Declaration order is
// the match precedence.

func DefaultBrandTable() []Entry {
	return []Entry{
		{"Nike", []string{"nike", "swoosh", "air max", "air force", "dunk", "blazer"}},
		{"Adidas", []string{"adidas", "yeezy", "boost", "ultraboost", "nmd", "superstar"}},
		{"Jordan", []string{"jordan", "aj1", "aj4", "aj11", "retro"}},
		{"Supreme", []string{"supreme", "box logo", "bogo"}},
		{"Off-White", []string{"off-white", "off white", "virgil"}},
		{"Gucci", []string{"gucci", "gg"}},
		{"Louis Vuitton", []string{"louis vuitton", "lv", "monogram"}},
		{"Dior", []string{"dior", "cd", "saddle"}},
		{"Balenciaga", []string{"balenciaga", "triple s", "speed trainer"}},
		{"Prada", []string{"prada", "re-nylon"}},
		{"Fendi", []string{"fendi", "ff"}},
		{"Burberry", []string{"burberry", "tb"}},
		{"Stone Island", []string{"stone island", "si", "compass"}},
		{"Moncler", []string{"moncler", "maya"}},
		{"Canada Goose", []string{"canada goose", "cg"}},
		{"The North Face", []string{"north face", "tnf", "nuptse"}},
		{"Bape", []string{"bape", "bathing ape", "shark hoodie"}},
		{"Palace", []string{"palace", "tri-ferg"}},
		{"Stussy", []string{"stussy", "stüssy"}},
		{"Chrome Hearts", []string{"chrome hearts", "ch"}},
		{"Fear Of God", []string{"fear of god", "fog", "essentials"}},
		{"Represent", []string{"represent"}},
		{"Gallery Dept", []string{"gallery dept"}},
		{"Trapstar", []string{"trapstar"}},
		{"Rick Owens", []string{"rick owens", "drkshdw"}},
		{"Acne Studios", []string{"acne studios", "acne"}},
		{"Ami", []string{"ami paris", "ami"}},
		{"Arcteryx", []string{"arcteryx", "arc'teryx"}},
		{"Palm Angels", []string{"palm angels"}},
		{"Vetements", []string{"vetements"}},
		{"Rhude", []string{"rhude"}},
		{"Amiri", []string{"amiri"}},
		{"Casablanca", []string{"casablanca"}},
		{"Hermes", []string{"hermes", "hermès", "birkin", "kelly"}},
		{"Chanel", []string{"chanel", "cc"}},
		{"Bottega Veneta", []string{"bottega", "bv", "intrecciato"}},
		{"Loewe", []string{"loewe", "puzzle"}},
		{"Celine", []string{"celine", "céline"}},
		{"Goyard", []string{"goyard"}},
		{"Golden Goose", []string{"golden goose", "ggdb"}},
		{"Alexander Mcqueen", []string{"mcqueen", "alexander mcqueen"}},
		{"Common Projects", []string{"common projects", "cp"}},
		{"Valentino", []string{"valentino", "vltn"}},
		{"Versace", []string{"versace", "medusa"}},
		{"Givenchy", []string{"givenchy"}},
		{"Ysl", []string{"ysl", "saint laurent", "yves saint laurent"}},
		{"Thom Browne", []string{"thom browne"}},
		{"Loro Piana", []string{"loro piana"}},
		{"Zegna", []string{"zegna", "ermenegildo"}},
		{"Rolex", []string{"rolex", "submariner", "datejust", "daytona"}},
		{"Omega", []string{"omega", "speedmaster", "seamaster"}},
		{"Cartier", []string{"cartier", "love", "juste un clou"}},
		{"Vivienne Westwood", []string{"vivienne westwood", "orb"}},
	}
}

func DefaultCategoryTable() []Entry {
	return []Entry{
		{"bags", []string{"bag", "backpack", "purse", "wallet", "tote", "clutch", "handbag",
			"crossbody", "messenger", "satchel", "duffle", "briefcase"}},
		{"shoes", []string{"shoe", "sneaker", "boot", "sandal", "slipper", "loafer", "trainer",
			"runner", "dunk", "jordan", "yeezy", "force", "air max", "aj1", "aj4"}},
		{"hoodies", []string{"hoodie", "sweatshirt", "pullover"}},
		{"tshirts", []string{"t-shirt", "tee"}},
		{"shirts", []string{"shirt", "polo", "blouse"}},
		{"jackets", []string{"jacket", "coat", "parka", "bomber", "windbreaker", "down",
			"puffer", "vest", "gilet"}},
		{"pants", []string{"pant", "jean", "trouser", "jogger"}},
		{"shorts", []string{"short"}},
		{"pants", []string{"cargo", "sweatpant", "legging"}},
		{"accessories", []string{"belt", "hat", "cap", "scarf", "glove", "beanie",
			"sunglasses", "glasses", "tie"}},
		{"watches", []string{"watch"}},
		{"jewelry", []string{"jewelry", "necklace", "bracelet", "ring", "earring", "chain"}},
		{"knitwear", []string{"sweater", "cardigan", "knit"}},
		{"dresses", []string{"dress", "skirt"}},
		{"suits", []string{"suit", "blazer"}},
		{"underwear", []string{"underwear"}},
		{"socks", []string{"sock"}},
	}
}
