package cards

// Titles of the passive cards consulted during resolution.
const (
	AcidAttack          = "Acid Attack"
	AlienMetabolism     = "Alien Metabolism"
	ArmorPlating        = "Armor Plating"
	CompleteDestruction = "Complete Destruction"
	DedicatedNewsTeam   = "Dedicated News Team"
	EnergyHoarder       = "Energy Hoarder"
	EvenBigger          = "Even Bigger"
	FriendOfChildren    = "Friend of Children"
	Gourmet             = "Gourmet"
	Herbivore           = "Herbivore"
	Omnivore            = "Omnivore"
	PoisonQuills        = "Poison Quills"
	Regeneration        = "Regeneration"
	SolarPowered        = "Solar Powered"
	SpikedTail          = "Spiked Tail"
	Urbavore            = "Urbavore"
)
