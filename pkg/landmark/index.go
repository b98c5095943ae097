package landmark

// MediaPipe hand landmark indices (21 points).
const (
	Wrist     = 0
	ThumbCMC  = 1
	ThumbMCP  = 2
	ThumbIP   = 3
	ThumbTip  = 4
	IndexMCP  = 5
	IndexPIP  = 6
	IndexDIP  = 7
	IndexTip  = 8
	MiddleMCP = 9
	MiddlePIP = 10
	MiddleDIP = 11
	MiddleTip = 12
	RingMCP   = 13
	RingPIP   = 14
	RingDIP   = 15
	RingTip   = 16
	PinkyMCP  = 17
	PinkyPIP  = 18
	PinkyDIP  = 19
	PinkyTip  = 20

	HandPoints = 21
)

// MediaPipe face mesh.
const FaceMeshNoseTip = 1

// YuNet face landmarks (5 points).
const (
	YuNetRightEye   = 0
	YuNetLeftEye    = 1
	YuNetNoseTip    = 2
	YuNetRightMouth = 3
	YuNetLeftMouth  = 4

	YuNetPoints = 5
)
