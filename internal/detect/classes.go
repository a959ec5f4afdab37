package detect

import "strings"

// Category buckets recognized items for glyph selection and filtering.
type Category string

const (
	CategoryVegetable Category = "vegetable"
	CategoryFruit     Category = "fruit"
	CategoryDairy     Category = "dairy"
	CategoryProtein   Category = "protein"
	CategoryGrain     Category = "grain"
	CategoryOther     Category = "other"
)

// cocoClassNames lists the 80 COCO classes in YOLO/Ultralytics order.
var cocoClassNames = [classCount]string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe",
	"backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard",
	"sports ball", "kite", "baseball bat", "baseball glove", "skateboard", "surfboard",
	"tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl",
	"banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza",
	"donut", "cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet",
	"tv", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave", "oven",
	"toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

// cocoCategories maps class ids to pantry categories; anything unmapped is
// CategoryOther.
var cocoCategories = map[int]Category{
	50: CategoryVegetable, // broccoli
	51: CategoryVegetable, // carrot
	58: CategoryVegetable, // potted plant
	46: CategoryFruit,     // banana
	47: CategoryFruit,     // apple
	49: CategoryFruit,     // orange
	39: CategoryDairy,     // bottle
	40: CategoryDairy,     // wine glass
	41: CategoryDairy,     // cup
	52: CategoryProtein,   // hot dog
	48: CategoryGrain,     // sandwich
	53: CategoryGrain,     // pizza
	54: CategoryGrain,     // donut
	55: CategoryGrain,     // cake
}

// ClassName resolves a class id to a display name. Unrecognized ids resolve
// to "Unknown".
func ClassName(classID int) string {
	if classID < 0 || classID >= classCount {
		return "Unknown"
	}
	name := cocoClassNames[classID]
	return strings.ToUpper(name[:1]) + name[1:]
}

// ClassCategory resolves a class id to its pantry category.
func ClassCategory(classID int) Category {
	if c, ok := cocoCategories[classID]; ok {
		return c
	}
	return CategoryOther
}
